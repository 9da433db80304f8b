package ad

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
)

// NewParams carries the validated inputs of a submission. Price and EndDate
// are computed by the pricing engine and schedule calculator beforehand.
type NewParams struct {
	OwnerID       string
	Name          string
	CreativeType  CreativeType
	Description   string
	TargetURL     string
	MediaRef      string
	Placement     Placement
	Format        Format
	Region        Region
	Price         decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	DurationValue int
	DurationUnit  DurationUnit
}

// Record is the persisted shape of an Advertisement
type Record struct {
	ID               string
	OwnerID          string
	Name             string
	CreativeType     string
	Description      string
	TargetURL        string
	MediaRef         string
	Placement        string
	Format           string
	Region           string
	Price            decimal.Decimal
	StartDate        time.Time
	EndDate          time.Time
	DurationValue    int
	DurationUnit     string
	PaymentState     string
	PaymentSession   string
	ReviewState      string
	ApprovalState    string
	CurrentSessionID string
	RejectionReason  string
	DecidedBy        string
	DecidedAt        *time.Time
	ArchivedAt       *time.Time
	ArchiveReason    string
	LastServedAt     *time.Time
	CreatedAt        time.Time
	Version          int
}

// Factory provides methods to create and reconstruct Advertisement entities
type Factory struct {
	now func() time.Time
}

// NewFactory creates a new Advertisement factory
func NewFactory() *Factory {
	return &Factory{now: time.Now}
}

// NewFactoryWithClock creates a factory stamping creation times from now
func NewFactoryWithClock(now func() time.Time) *Factory {
	return &Factory{now: now}
}

// CreateAdvertisement creates a new Advertisement with a fresh lifecycle
func (f *Factory) CreateAdvertisement(p NewParams) (*Advertisement, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.OwnerID = strings.TrimSpace(p.OwnerID)
	p.MediaRef = strings.TrimSpace(p.MediaRef)
	p.TargetURL = strings.TrimSpace(p.TargetURL)

	if p.Name == "" {
		return nil, ErrInvalidName
	}
	if p.OwnerID == "" {
		return nil, ErrInvalidOwner
	}
	if p.MediaRef == "" {
		return nil, ErrInvalidMediaRef
	}
	if err := validateEnums(string(p.CreativeType), string(p.Placement), string(p.Format), string(p.Region), string(p.DurationUnit)); err != nil {
		return nil, err
	}
	if !p.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if p.StartDate.IsZero() {
		return nil, ErrInvalidStartDate
	}
	if p.DurationValue <= 0 {
		return nil, fmt.Errorf("%w: duration value %d", lifecycle.ErrInvalidWindow, p.DurationValue)
	}
	if p.TargetURL != "" {
		if err := validateTargetURL(p.TargetURL); err != nil {
			return nil, err
		}
	}

	window, err := lifecycle.NewWindow(p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}

	return &Advertisement{
		id:            NewAdID(),
		ownerID:       p.OwnerID,
		name:          p.Name,
		creativeType:  p.CreativeType,
		description:   strings.TrimSpace(p.Description),
		targetURL:     p.TargetURL,
		mediaRef:      p.MediaRef,
		placement:     p.Placement,
		format:        p.Format,
		region:        p.Region,
		price:         p.Price,
		durationValue: p.DurationValue,
		durationUnit:  p.DurationUnit,
		lifecycle:     lifecycle.New(window),
		createdAt:     f.now().UTC(),
		version:       1,
	}, nil
}

// ReconstructAdvertisement reconstructs an Advertisement from persistence data
func (f *Factory) ReconstructAdvertisement(r Record) (*Advertisement, error) {
	id, err := ParseAdID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid ad id %q: %w", r.ID, err)
	}
	if err := validateEnums(r.CreativeType, r.Placement, r.Format, r.Region, r.DurationUnit); err != nil {
		return nil, err
	}

	window, err := lifecycle.NewWindow(r.StartDate, r.EndDate)
	if err != nil {
		return nil, err
	}
	machine, err := lifecycle.Restore(
		window,
		lifecycle.PaymentState(r.PaymentState),
		r.PaymentSession,
		lifecycle.ReviewState(r.ReviewState),
		lifecycle.ApprovalState(r.ApprovalState),
	)
	if err != nil {
		return nil, err
	}

	return &Advertisement{
		id:               id,
		ownerID:          r.OwnerID,
		name:             r.Name,
		creativeType:     CreativeType(r.CreativeType),
		description:      r.Description,
		targetURL:        r.TargetURL,
		mediaRef:         r.MediaRef,
		placement:        Placement(r.Placement),
		format:           Format(r.Format),
		region:           Region(r.Region),
		price:            r.Price,
		durationValue:    r.DurationValue,
		durationUnit:     DurationUnit(r.DurationUnit),
		lifecycle:        machine,
		currentSessionID: r.CurrentSessionID,
		rejectionReason:  r.RejectionReason,
		decidedBy:        r.DecidedBy,
		decidedAt:        r.DecidedAt,
		archivedAt:       r.ArchivedAt,
		archiveReason:    ArchiveReason(r.ArchiveReason),
		lastServedAt:     r.LastServedAt,
		createdAt:        r.CreatedAt,
		version:          r.Version,
	}, nil
}

// ToRecord flattens an Advertisement for persistence
func (a *Advertisement) ToRecord() Record {
	return Record{
		ID:               a.id.String(),
		OwnerID:          a.ownerID,
		Name:             a.name,
		CreativeType:     string(a.creativeType),
		Description:      a.description,
		TargetURL:        a.targetURL,
		MediaRef:         a.mediaRef,
		Placement:        string(a.placement),
		Format:           string(a.format),
		Region:           string(a.region),
		Price:            a.price,
		StartDate:        a.StartDate(),
		EndDate:          a.EndDate(),
		DurationValue:    a.durationValue,
		DurationUnit:     string(a.durationUnit),
		PaymentState:     string(a.lifecycle.Payment()),
		PaymentSession:   a.lifecycle.PaymentSession(),
		ReviewState:      string(a.lifecycle.Review()),
		ApprovalState:    string(a.lifecycle.Approval()),
		CurrentSessionID: a.currentSessionID,
		RejectionReason:  a.rejectionReason,
		DecidedBy:        a.decidedBy,
		DecidedAt:        a.decidedAt,
		ArchivedAt:       a.archivedAt,
		ArchiveReason:    string(a.archiveReason),
		LastServedAt:     a.lastServedAt,
		CreatedAt:        a.createdAt,
		Version:          a.version,
	}
}

func validateEnums(creativeType, placement, format, region, unit string) error {
	if _, err := ParseCreativeType(creativeType); err != nil {
		return err
	}
	if _, err := ParsePlacement(placement); err != nil {
		return err
	}
	if _, err := ParseFormat(format); err != nil {
		return err
	}
	if _, err := ParseRegion(region); err != nil {
		return err
	}
	if _, err := ParseDurationUnit(unit); err != nil {
		return err
	}
	return nil
}

func validateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidTargetURL
	}
	return nil
}
