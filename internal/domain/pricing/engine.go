package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

// pricePlaces is the number of decimal places prices are rounded to
const pricePlaces = 2

// Engine computes advertisement prices from an injected Table
type Engine struct {
	table Table
}

// NewEngine creates an engine over table. The table is copied so later edits
// to the caller's maps do not leak in.
func NewEngine(table Table) (*Engine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Engine{table: table.clone()}, nil
}

// ComputePrice returns basePrice[placement] * format multiplier * region
// multiplier, rounded to cents. Unknown enum values fail with
// ad.ErrInvalidEnumValue.
func (e *Engine) ComputePrice(placement ad.Placement, format ad.Format, region ad.Region) (decimal.Decimal, error) {
	p, err := ad.ParsePlacement(string(placement))
	if err != nil {
		return decimal.Zero, err
	}
	f, err := ad.ParseFormat(string(format))
	if err != nil {
		return decimal.Zero, err
	}
	r, err := ad.ParseRegion(string(region))
	if err != nil {
		return decimal.Zero, err
	}

	price := e.table.BasePrices[p].
		Mul(e.table.FormatMultipliers[f]).
		Mul(e.table.RegionMultipliers[r])
	return price.Round(pricePlaces), nil
}

// Table returns a copy of the pricing table
func (e *Engine) Table() Table {
	return e.table.clone()
}

func (t Table) clone() Table {
	c := Table{
		BasePrices:        make(map[ad.Placement]decimal.Decimal, len(t.BasePrices)),
		FormatMultipliers: make(map[ad.Format]decimal.Decimal, len(t.FormatMultipliers)),
		RegionMultipliers: make(map[ad.Region]decimal.Decimal, len(t.RegionMultipliers)),
	}
	for k, v := range t.BasePrices {
		c.BasePrices[k] = v
	}
	for k, v := range t.FormatMultipliers {
		c.FormatMultipliers[k] = v
	}
	for k, v := range t.RegionMultipliers {
		c.RegionMultipliers[k] = v
	}
	return c
}
