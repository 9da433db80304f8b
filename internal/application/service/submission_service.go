package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/media"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/internal/domain/pricing"
	"github.com/personal/ad-lifecycle/internal/domain/schedule"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// SubmissionWriter persists a new advertisement together with its first
// payment session, both or neither
type SubmissionWriter interface {
	CreateSubmission(ctx context.Context, a *ad.Advertisement, session *payment.Session) error
}

// SubmissionService turns a purchase form into an advertisement with a
// fresh lifecycle and an open payment session
type SubmissionService struct {
	ads      ad.Repository
	sessions payment.Repository
	writer   SubmissionWriter
	gateway  payment.Gateway
	pricing  *pricing.Engine
	media    media.Store
	factory  *ad.Factory
	currency string
	now      Clock
	log      *logger.Logger
}

// NewSubmissionService creates a new SubmissionService. mediaStore may be nil,
// in which case media references are not checked.
func NewSubmissionService(
	ads ad.Repository,
	sessions payment.Repository,
	writer SubmissionWriter,
	gateway payment.Gateway,
	engine *pricing.Engine,
	mediaStore media.Store,
	currency string,
	now Clock,
	log *logger.Logger,
) *SubmissionService {
	if now == nil {
		now = SystemClock
	}
	return &SubmissionService{
		ads:      ads,
		sessions: sessions,
		writer:   writer,
		gateway:  gateway,
		pricing:  engine,
		media:    mediaStore,
		factory:  ad.NewFactoryWithClock(now),
		currency: currency,
		now:      now,
		log:      log,
	}
}

// SubmitAdRequest represents a purchase form submission
type SubmitAdRequest struct {
	OwnerID        string    `json:"ownerId" validate:"required"`
	Name           string    `json:"name" validate:"required,max=200"`
	Type           string    `json:"type" validate:"required"`
	Description    string    `json:"description" validate:"max=2000"`
	Region         string    `json:"region" validate:"required"`
	Placement      string    `json:"placement" validate:"required"`
	Format         string    `json:"format" validate:"required"`
	Duration       int       `json:"duration"`
	DurationType   string    `json:"durationType" validate:"required"`
	StartDate      time.Time `json:"startDate" validate:"required"`
	TargetURL      string    `json:"targetUrl,omitempty" validate:"omitempty,url"`
	MediaReference string    `json:"mediaReference" validate:"required"`
}

// SubmitAdResponse represents the response after submitting an ad
type SubmitAdResponse struct {
	AdvertisementID  string    `json:"advertisementId"`
	Price            string    `json:"price"`
	Currency         string    `json:"currency"`
	ComputedEndDate  time.Time `json:"computedEndDate"`
	PaymentSessionID string    `json:"paymentSessionId"`
	RedirectURL      string    `json:"redirectUrl"`
}

// Submit prices and schedules the ad, stores it and opens a payment session
func (s *SubmissionService) Submit(ctx context.Context, req *SubmitAdRequest) (*SubmitAdResponse, error) {
	placement, err := ad.ParsePlacement(req.Placement)
	if err != nil {
		return nil, err
	}
	format, err := ad.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	region, err := ad.ParseRegion(req.Region)
	if err != nil {
		return nil, err
	}
	unit, err := ad.ParseDurationUnit(req.DurationType)
	if err != nil {
		return nil, err
	}
	creativeType, err := ad.ParseCreativeType(req.Type)
	if err != nil {
		return nil, err
	}

	price, err := s.pricing.ComputePrice(placement, format, region)
	if err != nil {
		return nil, err
	}
	start := req.StartDate.UTC()
	end, err := schedule.ComputeEndDate(start, req.Duration, unit)
	if err != nil {
		return nil, err
	}

	if s.media != nil {
		exists, err := s.media.Exists(ctx, req.MediaReference)
		if err != nil {
			return nil, fmt.Errorf("failed to check media reference: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", media.ErrMediaNotFound, req.MediaReference)
		}
	}

	newAd, err := s.factory.CreateAdvertisement(ad.NewParams{
		OwnerID:       req.OwnerID,
		Name:          req.Name,
		CreativeType:  creativeType,
		Description:   req.Description,
		TargetURL:     req.TargetURL,
		MediaRef:      req.MediaReference,
		Placement:     placement,
		Format:        format,
		Region:        region,
		Price:         price,
		StartDate:     start,
		EndDate:       end,
		DurationValue: req.Duration,
		DurationUnit:  unit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ad: %w", err)
	}

	session, err := s.openSession(ctx, newAd)
	if err != nil {
		return nil, err
	}
	if err := newAd.AttachPaymentSession(session.ID()); err != nil {
		return nil, err
	}

	if err := s.writer.CreateSubmission(ctx, newAd, session); err != nil {
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}

	monitoring.RecordAdSubmitted(string(placement), string(format), string(region))
	monitoring.RecordSessionCreated("initial")
	s.log.WithFields(logger.Fields{
		"ad_id":      newAd.ID().String(),
		"owner_id":   newAd.OwnerID(),
		"price":      price.StringFixed(2),
		"session_id": session.ID(),
	}).Info("Advertisement submitted")

	return &SubmitAdResponse{
		AdvertisementID:  newAd.ID().String(),
		Price:            price.StringFixed(2),
		Currency:         s.currency,
		ComputedEndDate:  end,
		PaymentSessionID: session.ID(),
		RedirectURL:      session.RedirectURL(),
	}, nil
}

// RetryPaymentResponse represents a new payment attempt
type RetryPaymentResponse struct {
	AdvertisementID  string `json:"advertisementId"`
	Price            string `json:"price"`
	PaymentSessionID string `json:"paymentSessionId"`
	RedirectURL      string `json:"redirectUrl"`
}

// RetryPayment opens a new payment session for an unpaid ad. The price is
// the one frozen at creation.
func (s *SubmissionService) RetryPayment(ctx context.Context, adID, ownerID string) (*RetryPaymentResponse, error) {
	id, err := parseAdID(adID)
	if err != nil {
		return nil, err
	}

	var session *payment.Session
	err = withOptimisticRetry(ctx, "retry_payment", DefaultMaxAttempts, func() error {
		current, err := s.ads.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.OwnerID() != ownerID {
			return ad.ErrNotOwner
		}
		if err := current.CanAcceptPayment(); err != nil {
			return err
		}

		// Open and store the session once; version conflicts only redo the
		// attach. The row exists before the ad points at it.
		if session == nil {
			opened, err := s.openSession(ctx, current)
			if err != nil {
				return err
			}
			if err := s.sessions.Create(ctx, opened); err != nil {
				return fmt.Errorf("failed to save payment session: %w", err)
			}
			session = opened
		}
		if err := current.AttachPaymentSession(session.ID()); err != nil {
			return err
		}
		return s.ads.Update(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordSessionCreated("retry")
	s.log.WithFields(logger.Fields{
		"ad_id":      adID,
		"session_id": session.ID(),
	}).Info("Payment retry session opened")

	return &RetryPaymentResponse{
		AdvertisementID:  adID,
		Price:            session.Amount().StringFixed(2),
		PaymentSessionID: session.ID(),
		RedirectURL:      session.RedirectURL(),
	}, nil
}

func (s *SubmissionService) openSession(ctx context.Context, a *ad.Advertisement) (*payment.Session, error) {
	checkout, err := s.gateway.CreateSession(ctx, payment.CheckoutRequest{
		AdID:        a.ID().String(),
		OwnerID:     a.OwnerID(),
		Description: a.Name(),
		Amount:      a.Price().StringFixed(2),
		Currency:    s.currency,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}

	session, err := payment.NewSession(checkout.SessionID, a.ID().String(), a.Price(), s.currency, checkout.RedirectURL, s.now())
	if err != nil {
		return nil, fmt.Errorf("gateway returned an unusable session: %w", err)
	}
	return session, nil
}

// AdStatusResponse is the owner-facing view of an advertisement
type AdStatusResponse struct {
	AdvertisementID  string     `json:"advertisementId"`
	OwnerID          string     `json:"ownerId"`
	Name             string     `json:"name"`
	Type             string     `json:"type"`
	Description      string     `json:"description,omitempty"`
	TargetURL        string     `json:"targetUrl,omitempty"`
	MediaReference   string     `json:"mediaReference"`
	Placement        string     `json:"placement"`
	Format           string     `json:"format"`
	Region           string     `json:"region"`
	Price            string     `json:"price"`
	StartDate        time.Time  `json:"startDate"`
	EndDate          time.Time  `json:"endDate"`
	Duration         int        `json:"duration"`
	DurationType     string     `json:"durationType"`
	PaymentState     string     `json:"paymentState"`
	ReviewState      string     `json:"reviewState"`
	ApprovalState    string     `json:"approvalState"`
	Eligibility      string     `json:"eligibility"`
	PaymentSessionID string     `json:"paymentSessionId,omitempty"`
	RejectionReason  string     `json:"rejectionReason,omitempty"`
	DecidedBy        string     `json:"decidedBy,omitempty"`
	DecidedAt        *time.Time `json:"decidedAt,omitempty"`
	ArchivedAt       *time.Time `json:"archivedAt,omitempty"`
	ArchiveReason    string     `json:"archiveReason,omitempty"`
	LastServedAt     *time.Time `json:"lastServedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// NewAdStatusResponse builds the status view of a at now
func NewAdStatusResponse(a *ad.Advertisement, now time.Time) *AdStatusResponse {
	return &AdStatusResponse{
		AdvertisementID:  a.ID().String(),
		OwnerID:          a.OwnerID(),
		Name:             a.Name(),
		Type:             string(a.CreativeType()),
		Description:      a.Description(),
		TargetURL:        a.TargetURL(),
		MediaReference:   a.MediaRef(),
		Placement:        string(a.Placement()),
		Format:           string(a.Format()),
		Region:           string(a.Region()),
		Price:            a.Price().StringFixed(2),
		StartDate:        a.StartDate(),
		EndDate:          a.EndDate(),
		Duration:         a.DurationValue(),
		DurationType:     string(a.DurationUnit()),
		PaymentState:     string(a.PaymentState()),
		ReviewState:      string(a.ReviewState()),
		ApprovalState:    string(a.ApprovalState()),
		Eligibility:      string(a.Eligibility(now)),
		PaymentSessionID: a.CurrentSessionID(),
		RejectionReason:  a.RejectionReason(),
		DecidedBy:        a.DecidedBy(),
		DecidedAt:        a.DecidedAt(),
		ArchivedAt:       a.ArchivedAt(),
		ArchiveReason:    string(a.ArchiveReason()),
		LastServedAt:     a.LastServedAt(),
		CreatedAt:        a.CreatedAt(),
	}
}

// GetAdStatus retrieves the current facets and eligibility of an ad
func (s *SubmissionService) GetAdStatus(ctx context.Context, adID string) (*AdStatusResponse, error) {
	id, err := parseAdID(adID)
	if err != nil {
		return nil, err
	}

	adEntity, err := s.ads.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ad.ErrAdNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find ad: %w", err)
	}
	return NewAdStatusResponse(adEntity, s.now()), nil
}
