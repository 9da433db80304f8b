package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

// Table holds the base price per placement and the multipliers per format
// and region. It is configuration data; the formula lives in Engine.
type Table struct {
	BasePrices        map[ad.Placement]decimal.Decimal
	FormatMultipliers map[ad.Format]decimal.Decimal
	RegionMultipliers map[ad.Region]decimal.Decimal
}

// DefaultTable returns the shipped pricing table
func DefaultTable() Table {
	return Table{
		BasePrices: map[ad.Placement]decimal.Decimal{
			ad.PlacementTopRightColumn:    decimal.NewFromInt(100),
			ad.PlacementMidRightColumn:    decimal.NewFromInt(80),
			ad.PlacementBottomRightColumn: decimal.NewFromInt(60),
			ad.PlacementBelowFooter:       decimal.NewFromInt(50),
			ad.PlacementInFeed:            decimal.NewFromInt(120),
			ad.PlacementFullPageTakeover:  decimal.NewFromInt(300),
		},
		FormatMultipliers: map[ad.Format]decimal.Decimal{
			ad.FormatBanner:   decimal.NewFromInt(1),
			ad.FormatSidebar:  decimal.RequireFromString("1.2"),
			ad.FormatInFeed:   decimal.RequireFromString("1.5"),
			ad.FormatFullPage: decimal.RequireFromString("2.5"),
			ad.FormatMobile:   decimal.RequireFromString("0.8"),
		},
		RegionMultipliers: map[ad.Region]decimal.Decimal{
			ad.RegionLocal:        decimal.NewFromInt(1),
			ad.RegionMultiCountry: decimal.RequireFromString("1.5"),
			ad.RegionAllAfrica:    decimal.NewFromInt(2),
		},
	}
}

// TableFromStrings builds a Table from string keyed maps, as loaded from
// configuration
func TableFromStrings(base, formats, regions map[string]float64) (Table, error) {
	t := Table{
		BasePrices:        make(map[ad.Placement]decimal.Decimal, len(base)),
		FormatMultipliers: make(map[ad.Format]decimal.Decimal, len(formats)),
		RegionMultipliers: make(map[ad.Region]decimal.Decimal, len(regions)),
	}
	for k, v := range base {
		p, err := ad.ParsePlacement(k)
		if err != nil {
			return Table{}, fmt.Errorf("pricing base price: %w", err)
		}
		t.BasePrices[p] = decimal.NewFromFloat(v)
	}
	for k, v := range formats {
		f, err := ad.ParseFormat(k)
		if err != nil {
			return Table{}, fmt.Errorf("pricing format multiplier: %w", err)
		}
		t.FormatMultipliers[f] = decimal.NewFromFloat(v)
	}
	for k, v := range regions {
		r, err := ad.ParseRegion(k)
		if err != nil {
			return Table{}, fmt.Errorf("pricing region multiplier: %w", err)
		}
		t.RegionMultipliers[r] = decimal.NewFromFloat(v)
	}
	return t, nil
}

// Validate checks that every enum value has a strictly positive entry
func (t Table) Validate() error {
	for _, p := range ad.Placements() {
		v, ok := t.BasePrices[p]
		if !ok || !v.IsPositive() {
			return fmt.Errorf("%w: base price for %s", ErrIncompleteTable, p)
		}
	}
	for _, f := range ad.Formats() {
		v, ok := t.FormatMultipliers[f]
		if !ok || !v.IsPositive() {
			return fmt.Errorf("%w: multiplier for format %s", ErrIncompleteTable, f)
		}
	}
	for _, r := range ad.Regions() {
		v, ok := t.RegionMultipliers[r]
		if !ok || !v.IsPositive() {
			return fmt.Errorf("%w: multiplier for region %s", ErrIncompleteTable, r)
		}
	}
	return nil
}
