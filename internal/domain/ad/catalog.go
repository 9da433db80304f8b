package ad

import (
	"fmt"
	"strings"
)

// Placement is the page slot an advertisement is bought for
type Placement string

const (
	PlacementTopRightColumn    Placement = "top-right-column"
	PlacementMidRightColumn    Placement = "mid-right-column"
	PlacementBottomRightColumn Placement = "bottom-right-column"
	PlacementBelowFooter       Placement = "below-footer"
	PlacementInFeed            Placement = "in-feed"
	PlacementFullPageTakeover  Placement = "full-page-takeover"
)

// Format is the creative format of an advertisement
type Format string

const (
	FormatBanner   Format = "banner"
	FormatSidebar  Format = "sidebar"
	FormatInFeed   Format = "in-feed"
	FormatFullPage Format = "full-page"
	FormatMobile   Format = "mobile"
)

// Region is the geographic reach of an advertisement
type Region string

const (
	RegionLocal        Region = "local"
	RegionMultiCountry Region = "multi-country"
	RegionAllAfrica    Region = "all-africa"
)

// DurationUnit is the calendar unit of a booking duration
type DurationUnit string

const (
	DurationMinutes DurationUnit = "minutes"
	DurationHours   DurationUnit = "hours"
	DurationDays    DurationUnit = "days"
	DurationWeeks   DurationUnit = "weeks"
	DurationMonths  DurationUnit = "months"
)

// CreativeType is the kind of stored media object
type CreativeType string

const (
	CreativeImage CreativeType = "image"
	CreativeVideo CreativeType = "video"
)

// Placements lists every placement in display order
func Placements() []Placement {
	return []Placement{
		PlacementTopRightColumn,
		PlacementMidRightColumn,
		PlacementBottomRightColumn,
		PlacementBelowFooter,
		PlacementInFeed,
		PlacementFullPageTakeover,
	}
}

// Formats lists every format
func Formats() []Format {
	return []Format{FormatBanner, FormatSidebar, FormatInFeed, FormatFullPage, FormatMobile}
}

// Regions lists every region from narrowest to widest
func Regions() []Region {
	return []Region{RegionLocal, RegionMultiCountry, RegionAllAfrica}
}

// DurationUnits lists every duration unit
func DurationUnits() []DurationUnit {
	return []DurationUnit{DurationMinutes, DurationHours, DurationDays, DurationWeeks, DurationMonths}
}

func (p Placement) IsValid() bool {
	for _, v := range Placements() {
		if p == v {
			return true
		}
	}
	return false
}

func (f Format) IsValid() bool {
	for _, v := range Formats() {
		if f == v {
			return true
		}
	}
	return false
}

func (r Region) IsValid() bool {
	return r.rank() > 0
}

func (u DurationUnit) IsValid() bool {
	for _, v := range DurationUnits() {
		if u == v {
			return true
		}
	}
	return false
}

func (c CreativeType) IsValid() bool {
	return c == CreativeImage || c == CreativeVideo
}

// rank orders regions by reach; 0 means unknown
func (r Region) rank() int {
	switch r {
	case RegionLocal:
		return 1
	case RegionMultiCountry:
		return 2
	case RegionAllAfrica:
		return 3
	default:
		return 0
	}
}

// Contains reports whether an ad bought for r reaches a viewer in viewer.
// all-africa contains multi-country contains local.
func (r Region) Contains(viewer Region) bool {
	if !r.IsValid() || !viewer.IsValid() {
		return false
	}
	return r.rank() >= viewer.rank()
}

// RegionsReaching returns the ad regions whose reach contains viewer
func RegionsReaching(viewer Region) []Region {
	var result []Region
	for _, r := range Regions() {
		if r.Contains(viewer) {
			result = append(result, r)
		}
	}
	return result
}

// ParsePlacement parses a placement, failing with ErrInvalidEnumValue
func ParsePlacement(s string) (Placement, error) {
	p := Placement(normalize(s))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: placement %q", ErrInvalidEnumValue, s)
	}
	return p, nil
}

// ParseFormat parses a format, failing with ErrInvalidEnumValue
func ParseFormat(s string) (Format, error) {
	f := Format(normalize(s))
	if !f.IsValid() {
		return "", fmt.Errorf("%w: format %q", ErrInvalidEnumValue, s)
	}
	return f, nil
}

// ParseRegion parses a region, failing with ErrInvalidEnumValue
func ParseRegion(s string) (Region, error) {
	r := Region(normalize(s))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: region %q", ErrInvalidEnumValue, s)
	}
	return r, nil
}

// ParseDurationUnit parses a duration unit, failing with ErrInvalidEnumValue
func ParseDurationUnit(s string) (DurationUnit, error) {
	u := DurationUnit(normalize(s))
	if !u.IsValid() {
		return "", fmt.Errorf("%w: duration unit %q", ErrInvalidEnumValue, s)
	}
	return u, nil
}

// ParseCreativeType parses a creative type, failing with ErrInvalidEnumValue
func ParseCreativeType(s string) (CreativeType, error) {
	c := CreativeType(normalize(s))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: creative type %q", ErrInvalidEnumValue, s)
	}
	return c, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
