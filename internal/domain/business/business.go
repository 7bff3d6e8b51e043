// Package business describes the branch and brand directory that scopes
// catalog products. A product's BusinessID refers to a BranchBrand.
package business

import "context"

// Branch is a physical store location.
type Branch struct {
	ID      string
	Name    string
	Address string
}

// Brand is a trading name sold at one or more branches.
type Brand struct {
	ID   string
	Name string
}

// BranchBrand pairs a brand with the branch that sells it.
type BranchBrand struct {
	ID       string
	BranchID string
	BrandID  string
	Name     string
}

// Repository lists directory entries.
type Repository interface {
	ListBranches(ctx context.Context) ([]Branch, error)
	ListBrands(ctx context.Context) ([]Brand, error)
	ListBranchBrands(ctx context.Context) ([]BranchBrand, error)
}
