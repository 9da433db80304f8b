package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	. "github.com/onsi/gomega"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/notification"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/internal/domain/pricing"
	"github.com/personal/ad-lifecycle/internal/domain/serving"
	"github.com/personal/ad-lifecycle/internal/infrastructure/external"
	"github.com/personal/ad-lifecycle/internal/infrastructure/persistence"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

// env wires every service over in-memory stores and a movable clock
type env struct {
	ctx      context.Context
	now      time.Time
	ads      *persistence.MemoryAdRepository
	sessions *persistence.MemorySessionRepository
	gateway  *external.MockPaymentGateway
	notifier *recordingNotifier
	serveLog *memoryServeLog
	engine   *pricing.Engine

	submission  *service.SubmissionService
	reconciler  *service.PaymentReconciler
	approval    *service.ApprovalGate
	safety      *service.ContentSafetyService
	selector    *service.ServingSelector
	maintenance *service.MaintenanceService
}

func newEnv() *env {
	engine, err := pricing.NewEngine(pricing.DefaultTable())
	Expect(err).NotTo(HaveOccurred())

	e := &env{
		ctx:      context.Background(),
		now:      time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		ads:      persistence.NewMemoryAdRepository(),
		sessions: persistence.NewMemorySessionRepository(),
		gateway:  external.NewMockPaymentGateway("https://checkout.test"),
		notifier: &recordingNotifier{},
		engine:   engine,
	}
	e.wire(nil)
	return e
}

// wire rebuilds the services over the same stores, as a process restart would
func (e *env) wire(serveLog *memoryServeLog) {
	log := logger.Discard()
	e.serveLog = serveLog

	var sl serving.Log
	if serveLog != nil {
		sl = serveLog
	}

	e.submission = service.NewSubmissionService(e.ads, e.sessions, persistence.NewMemorySubmissionWriter(e.ads, e.sessions), e.gateway, e.engine, nil, "USD", e.clock, log)
	e.reconciler = service.NewPaymentReconciler(e.ads, e.sessions, nil, e.notifier, e.clock, log)
	e.approval = service.NewApprovalGate(e.ads, e.notifier, e.clock, log)
	e.safety = service.NewContentSafetyService(e.ads, e.notifier, e.clock, log)
	e.selector = service.NewServingSelector(e.ads, e.ads, sl, nil, time.Minute, e.clock, log)
	e.maintenance = service.NewMaintenanceService(e.ads, e.sessions, e.reconciler, sl, e.clock, log)
}

func (e *env) clock() time.Time {
	return e.now
}

func (e *env) request() *service.SubmitAdRequest {
	return &service.SubmitAdRequest{
		OwnerID:        "owner-1",
		Name:           "Spring sale",
		Type:           "image",
		Region:         "all-africa",
		Placement:      "in-feed",
		Format:         "in-feed",
		Duration:       2,
		DurationType:   "days",
		StartDate:      e.now.Add(-time.Hour),
		MediaReference: "creatives/spring.png",
	}
}

func (e *env) submit(mutate func(*service.SubmitAdRequest)) *service.SubmitAdResponse {
	req := e.request()
	if mutate != nil {
		mutate(req)
	}
	resp, err := e.submission.Submit(e.ctx, req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

// eligible submits an ad and drives every facet to its serving value
func (e *env) eligible(placement, format, region string) *service.SubmitAdResponse {
	resp := e.submit(func(r *service.SubmitAdRequest) {
		r.Placement = placement
		r.Format = format
		r.Region = region
	})
	Expect(e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventCompleted)).To(Succeed())
	Expect(e.safety.RecordResult(e.ctx, resp.AdvertisementID, "CLEAN")).To(Succeed())
	Expect(e.approval.Approve(e.ctx, resp.AdvertisementID, "mod-1")).To(Succeed())
	return resp
}

func (e *env) find(id string) *ad.Advertisement {
	parsed, err := ad.ParseAdID(id)
	Expect(err).NotTo(HaveOccurred())
	a, err := e.ads.FindByID(e.ctx, parsed)
	Expect(err).NotTo(HaveOccurred())
	return a
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) kinds() []notification.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notification.Kind, 0, len(n.sent))
	for _, msg := range n.sent {
		kinds = append(kinds, msg.Kind)
	}
	return kinds
}

// memoryServeLog is a map-backed serving.Log
type memoryServeLog struct {
	mu    sync.Mutex
	marks map[ad.AdID]time.Time
}

func newMemoryServeLog() *memoryServeLog {
	return &memoryServeLog{marks: make(map[ad.AdID]time.Time)}
}

func (l *memoryServeLog) Record(ctx context.Context, adID ad.AdID, servedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.marks[adID]; !ok || servedAt.After(prev) {
		l.marks[adID] = servedAt
	}
	return nil
}

func (l *memoryServeLog) LastServed(ctx context.Context, ids []ad.AdID) (map[ad.AdID]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make(map[ad.AdID]time.Time)
	for _, id := range ids {
		if at, ok := l.marks[id]; ok {
			result[id] = at
		}
	}
	return result, nil
}

func (l *memoryServeLog) Drain(ctx context.Context, limit int) ([]serving.ServeMark, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	marks := make([]serving.ServeMark, 0, len(l.marks))
	for id, at := range l.marks {
		marks = append(marks, serving.NewServeMark(id, at))
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].ServedAt().Before(marks[j].ServedAt()) })
	if limit > 0 && len(marks) > limit {
		marks = marks[:limit]
	}
	for _, m := range marks {
		delete(l.marks, m.AdID())
	}
	return marks, nil
}

func (l *memoryServeLog) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.marks)
}

var notificationDown = errors.New("notification channel down")
