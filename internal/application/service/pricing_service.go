package service

import (
	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/pricing"
)

// PricingService exposes quotes and the active pricing table
type PricingService struct {
	engine   *pricing.Engine
	currency string
}

// NewPricingService creates a new PricingService
func NewPricingService(engine *pricing.Engine, currency string) *PricingService {
	return &PricingService{engine: engine, currency: currency}
}

// QuoteResponse is the price of one placement, format and region
type QuoteResponse struct {
	Placement string `json:"placement"`
	Format    string `json:"format"`
	Region    string `json:"region"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
}

// Quote prices a combination without creating anything
func (s *PricingService) Quote(placement, format, region string) (*QuoteResponse, error) {
	p, err := ad.ParsePlacement(placement)
	if err != nil {
		return nil, err
	}
	f, err := ad.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	r, err := ad.ParseRegion(region)
	if err != nil {
		return nil, err
	}

	price, err := s.engine.ComputePrice(p, f, r)
	if err != nil {
		return nil, err
	}
	return &QuoteResponse{
		Placement: string(p),
		Format:    string(f),
		Region:    string(r),
		Price:     price.StringFixed(2),
		Currency:  s.currency,
	}, nil
}

// PricingTableResponse lists base prices and multipliers
type PricingTableResponse struct {
	Currency          string            `json:"currency"`
	BasePrices        map[string]string `json:"basePrices"`
	FormatMultipliers map[string]string `json:"formatMultipliers"`
	RegionMultipliers map[string]string `json:"regionMultipliers"`
}

// Table returns the active pricing table
func (s *PricingService) Table() *PricingTableResponse {
	t := s.engine.Table()
	resp := &PricingTableResponse{
		Currency:          s.currency,
		BasePrices:        make(map[string]string, len(t.BasePrices)),
		FormatMultipliers: make(map[string]string, len(t.FormatMultipliers)),
		RegionMultipliers: make(map[string]string, len(t.RegionMultipliers)),
	}
	for k, v := range t.BasePrices {
		resp.BasePrices[string(k)] = v.StringFixed(2)
	}
	for k, v := range t.FormatMultipliers {
		resp.FormatMultipliers[string(k)] = v.String()
	}
	for k, v := range t.RegionMultipliers {
		resp.RegionMultipliers[string(k)] = v.String()
	}
	return resp
}
