package service_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
	"github.com/personal/ad-lifecycle/internal/domain/notification"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/internal/infrastructure/cache"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

var _ = Describe("PaymentReconciler", func() {
	var (
		e    *env
		resp *service.SubmitAdResponse
	)

	BeforeEach(func() {
		e = newEnv()
		resp = e.submit(nil)
	})

	It("marks the ad paid and the session completed", func() {
		Expect(e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventCompleted)).To(Succeed())

		Expect(e.find(resp.AdvertisementID).PaymentState()).To(Equal(lifecycle.PaymentPaid))
		session, err := e.sessions.FindByID(e.ctx, resp.PaymentSessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.State()).To(Equal(payment.SessionCompleted))
		Expect(*session.CompletedAt()).To(Equal(e.now))
		Expect(e.notifier.kinds()).To(Equal([]notification.Kind{notification.KindPaymentCompleted}))
	})

	It("treats a redelivery after a restart as a no-op", func() {
		Expect(e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventCompleted)).To(Succeed())
		version := e.find(resp.AdvertisementID).Version()

		e.wire(nil)
		Expect(e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, "completed")).To(Succeed())

		stored := e.find(resp.AdvertisementID)
		Expect(stored.PaymentState()).To(Equal(lifecycle.PaymentPaid))
		Expect(stored.Version()).To(Equal(version))
		Expect(e.notifier.kinds()).To(HaveLen(1))
	})

	It("answers duplicates from the outcome cache", func() {
		outcomes := cache.NewSessionCache(nil, cache.DefaultCacheConfig())
		reconciler := service.NewPaymentReconciler(e.ads, e.sessions, outcomes, nil, e.clock, logger.Discard())

		Expect(reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventCompleted)).To(Succeed())
		cached, ok := outcomes.Get(e.ctx, resp.PaymentSessionID)
		Expect(ok).To(BeTrue())
		Expect(cached).To(Equal(payment.SessionCompleted))

		Expect(reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventCompleted)).To(Succeed())
	})

	It("fails for an unknown session and changes nothing", func() {
		err := e.reconciler.Reconcile(e.ctx, "cs_unknown", payment.EventCompleted)
		Expect(err).To(MatchError(payment.ErrUnknownSession))
		Expect(e.find(resp.AdvertisementID).PaymentState()).To(Equal(lifecycle.PaymentUnpaid))
	})

	It("rejects unknown event types", func() {
		err := e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, "REFUNDED")
		Expect(err).To(MatchError(payment.ErrInvalidEventType))
	})

	It("reports a completion contradicting a recorded failure", func() {
		Expect(e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventFailed)).To(Succeed())

		err := e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventCompleted)
		Expect(err).To(MatchError(lifecycle.ErrConflictingTransition))
		Expect(e.find(resp.AdvertisementID).PaymentState()).To(Equal(lifecycle.PaymentFailed))
	})

	Context("with a second session for a paid ad", func() {
		var other *payment.Session

		BeforeEach(func() {
			Expect(e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventCompleted)).To(Succeed())

			var err error
			other, err = payment.NewSession("cs_other", resp.AdvertisementID, decimal.RequireFromString("360.00"), "USD", "", e.now)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.sessions.Create(e.ctx, other)).To(Succeed())
		})

		It("reports a second completion as a conflict", func() {
			err := e.reconciler.Reconcile(e.ctx, other.ID(), payment.EventCompleted)
			Expect(err).To(MatchError(lifecycle.ErrConflictingTransition))

			stored := e.find(resp.AdvertisementID)
			Expect(stored.PaymentState()).To(Equal(lifecycle.PaymentPaid))
			Expect(stored.PaymentSessionID()).To(Equal(resp.PaymentSessionID))
		})

		It("ignores a late failure of the superseded session", func() {
			Expect(e.reconciler.Reconcile(e.ctx, other.ID(), payment.EventFailed)).To(Succeed())

			Expect(e.find(resp.AdvertisementID).PaymentState()).To(Equal(lifecycle.PaymentPaid))
			session, err := e.sessions.FindByID(e.ctx, other.ID())
			Expect(err).NotTo(HaveOccurred())
			Expect(session.State()).To(Equal(payment.SessionFailed))
		})
	})

	It("keeps the state change when the owner cannot be notified", func() {
		e.notifier.err = notificationDown
		Expect(e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventFailed)).To(Succeed())
		Expect(e.find(resp.AdvertisementID).PaymentState()).To(Equal(lifecycle.PaymentFailed))
	})

	Describe("expiry through maintenance", func() {
		It("expires sessions older than the ttl", func() {
			e.now = e.now.Add(2 * time.Hour)

			expired, err := e.maintenance.ExpireStaleSessions(e.ctx, time.Hour, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(expired).To(Equal(1))

			Expect(e.find(resp.AdvertisementID).PaymentState()).To(Equal(lifecycle.PaymentFailed))
			session, err := e.sessions.FindByID(e.ctx, resp.PaymentSessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.State()).To(Equal(payment.SessionExpired))
		})

		Context("when a completion reached the ad but not the session", func() {
			BeforeEach(func() {
				stored := e.find(resp.AdvertisementID)
				changed, err := stored.CompletePayment(resp.PaymentSessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(changed).To(BeTrue())
				Expect(e.ads.Update(e.ctx, stored)).To(Succeed())
				e.now = e.now.Add(2 * time.Hour)
			})

			It("completes the session instead of expiring it", func() {
				expired, err := e.maintenance.ExpireStaleSessions(e.ctx, time.Hour, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(expired).To(Equal(1))

				session, err := e.sessions.FindByID(e.ctx, resp.PaymentSessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(session.State()).To(Equal(payment.SessionCompleted))
				Expect(e.find(resp.AdvertisementID).PaymentState()).To(Equal(lifecycle.PaymentPaid))

				expired, err = e.maintenance.ExpireStaleSessions(e.ctx, time.Hour, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(expired).To(Equal(0))
				Expect(e.notifier.kinds()).To(BeEmpty())
			})

			It("still reports a gateway failure as a conflict", func() {
				err := e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventFailed)
				Expect(err).To(MatchError(lifecycle.ErrConflictingTransition))

				session, err := e.sessions.FindByID(e.ctx, resp.PaymentSessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(session.State()).To(Equal(payment.SessionCompleted))
				Expect(e.find(resp.AdvertisementID).PaymentState()).To(Equal(lifecycle.PaymentPaid))
			})
		})

		It("leaves fresh sessions alone", func() {
			expired, err := e.maintenance.ExpireStaleSessions(e.ctx, time.Hour, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(expired).To(Equal(0))
		})
	})
})
