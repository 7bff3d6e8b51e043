package promotion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(promos []Promotion) []string {
	out := make([]string, len(promos))
	for i, p := range promos {
		out[i] = p.ID
	}
	return out
}

func TestEligible(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	day := func(offset int) time.Time {
		return time.Date(2025, 6, 15+offset, 0, 0, 0, 0, time.UTC)
	}
	base := Promotion{
		Kind:      KindPercentage,
		Value:     decimal.NewFromInt(10),
		StartDate: day(-1),
		EndDate:   day(1),
	}
	with := func(id string, mod func(p *Promotion)) Promotion {
		p := base
		p.ID = id
		if mod != nil {
			mod(&p)
		}
		return p
	}

	tests := []struct {
		name    string
		promo   Promotion
		cartIDs []string
		want    bool
	}{
		{name: "unrestricted and active", promo: with("p", nil), want: true},
		{name: "zero value", promo: with("p", func(p *Promotion) { p.Value = decimal.Zero })},
		{name: "negative value", promo: with("p", func(p *Promotion) { p.Value = decimal.NewFromInt(-5) })},
		{name: "not started", promo: with("p", func(p *Promotion) { p.StartDate = now.Add(time.Minute) })},
		{name: "expired", promo: with("p", func(p *Promotion) { p.EndDate = day(-1) })},
		{
			name:  "end date is inclusive for the whole day",
			promo: with("p", func(p *Promotion) { p.EndDate = day(0) }),
			want:  true,
		},
		{
			name: "inside window",
			promo: with("p", func(p *Promotion) {
				p.Window = &Window{Start: 12 * 60, End: 13 * 60}
			}),
			want: true,
		},
		{
			name: "window bounds are inclusive",
			promo: with("p", func(p *Promotion) {
				p.Window = &Window{Start: 12*60 + 30, End: 12*60 + 30}
			}),
			want: true,
		},
		{
			name: "outside window",
			promo: with("p", func(p *Promotion) {
				p.Window = &Window{Start: 8 * 60, End: 11 * 60}
			}),
		},
		{
			name: "window crossing midnight rejects every time",
			promo: with("p", func(p *Promotion) {
				p.Window = &Window{Start: 22 * 60, End: 13 * 60}
			}),
		},
		{
			name:    "restricted product in cart",
			promo:   with("p", func(p *Promotion) { p.Products = []string{"x", "a"} }),
			cartIDs: []string{"a", "b"},
			want:    true,
		},
		{
			name:    "restricted product missing from cart",
			promo:   with("p", func(p *Promotion) { p.Products = []string{"x"} }),
			cartIDs: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Eligible([]Promotion{tt.promo}, now, tt.cartIDs)
			if tt.want {
				assert.Equal(t, []string{tt.promo.ID}, ids(got))
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestEligible_PreservesSourceOrder(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	mk := func(id string, value int64) Promotion {
		return Promotion{
			ID:        id,
			Kind:      KindFixed,
			Value:     decimal.NewFromInt(value),
			StartDate: now.AddDate(0, 0, -1),
			EndDate:   now.AddDate(0, 0, 1),
		}
	}
	all := []Promotion{mk("c", 5), mk("a", 0), mk("b", 1), mk("d", 2)}

	got := Eligible(all, now, nil)
	assert.Equal(t, []string{"c", "b", "d"}, ids(got))
}

func TestEligible_EndDateUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	// 2025-06-15 23:00 local is still the promotion's last day.
	now := time.Date(2025, 6, 15, 23, 0, 0, 0, loc)
	p := Promotion{
		ID:        "late",
		Kind:      KindPercentage,
		Value:     decimal.NewFromInt(5),
		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, loc),
		EndDate:   time.Date(2025, 6, 15, 0, 0, 0, 0, loc),
	}
	assert.Len(t, Eligible([]Promotion{p}, now, nil), 1)
	assert.Empty(t, Eligible([]Promotion{p}, now.Add(time.Hour), nil))
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:15", want: 9*60 + 15},
		{in: "23:59:59", want: 23*60 + 59},
		{in: " 12:00 ", want: 12 * 60},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "12:00:99", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWindow(t *testing.T) {
	w, err := NewWindow("", "17:00")
	require.NoError(t, err)
	assert.Nil(t, w, "a half-open window means no restriction")

	w, err = NewWindow("08:00", "17:30:00")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "08:00", w.Start.String())
	assert.Equal(t, "17:30", w.End.String())

	_, err = NewWindow("8am", "17:00")
	require.Error(t, err)
}

func TestPromotion_AppliesTo(t *testing.T) {
	assert.True(t, Promotion{}.AppliesTo("anything"))
	p := Promotion{Products: []string{"a"}}
	assert.True(t, p.AppliesTo("a"))
	assert.False(t, p.AppliesTo("b"))
}

func TestFind(t *testing.T) {
	all := []Promotion{{ID: "a"}, {ID: "b"}}
	got, ok := Find(all, "b")
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
	_, ok = Find(all, "z")
	assert.False(t, ok)
}
