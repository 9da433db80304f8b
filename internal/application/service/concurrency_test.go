package service_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
)

var _ = Describe("Simultaneous callbacks", func() {
	const workers = 8

	var (
		e       *env
		resp    *service.SubmitAdResponse
		version int
	)

	BeforeEach(func() {
		e = newEnv()
		resp = e.submit(nil)
		version = e.find(resp.AdvertisementID).Version()
	})

	// concurrently runs fn n times at once and collects every result
	concurrently := func(n int, fn func(i int) error) []error {
		errs := make([]error, n)
		start := make(chan struct{})

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				<-start
				errs[i] = fn(i)
			}(i)
		}
		close(start)
		wg.Wait()
		return errs
	}

	// split counts successes and returns the failures
	split := func(errs []error) (int, []error) {
		ok := 0
		var failed []error
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			failed = append(failed, err)
		}
		return ok, failed
	}

	It("collapses duplicate completions into one change", func() {
		errs := concurrently(workers, func(int) error {
			return e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, payment.EventCompleted)
		})
		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}

		stored := e.find(resp.AdvertisementID)
		Expect(stored.PaymentState()).To(Equal(lifecycle.PaymentPaid))
		Expect(stored.Version()).To(Equal(version + 1))
		Expect(e.notifier.kinds()).To(HaveLen(1))

		session, err := e.sessions.FindByID(e.ctx, resp.PaymentSessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.State()).To(Equal(payment.SessionCompleted))
	})

	It("lets exactly one of a completion and a failure win", func() {
		errs := concurrently(2, func(i int) error {
			event := payment.EventCompleted
			if i == 1 {
				event = payment.EventFailed
			}
			return e.reconciler.Reconcile(e.ctx, resp.PaymentSessionID, event)
		})

		ok, failed := split(errs)
		Expect(ok).To(Equal(1))
		Expect(failed).To(HaveLen(1))
		Expect(failed[0]).To(MatchError(lifecycle.ErrConflictingTransition))

		stored := e.find(resp.AdvertisementID)
		session, err := e.sessions.FindByID(e.ctx, resp.PaymentSessionID)
		Expect(err).NotTo(HaveOccurred())
		if stored.PaymentState() == lifecycle.PaymentPaid {
			Expect(session.State()).To(Equal(payment.SessionCompleted))
		} else {
			Expect(stored.PaymentState()).To(Equal(lifecycle.PaymentFailed))
			Expect(session.State()).To(Equal(payment.SessionFailed))
		}
	})

	It("collapses duplicate scan verdicts", func() {
		errs := concurrently(workers, func(int) error {
			return e.safety.RecordResult(e.ctx, resp.AdvertisementID, "CLEAN")
		})
		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}

		stored := e.find(resp.AdvertisementID)
		Expect(stored.ReviewState()).To(Equal(lifecycle.ReviewClean))
		Expect(stored.Version()).To(Equal(version + 1))
	})

	It("catches opposite scan verdicts", func() {
		errs := concurrently(2, func(i int) error {
			if i == 0 {
				return e.safety.RecordResult(e.ctx, resp.AdvertisementID, "CLEAN")
			}
			return e.safety.RecordResult(e.ctx, resp.AdvertisementID, "FLAGGED")
		})

		ok, failed := split(errs)
		Expect(ok).To(Equal(1))
		Expect(failed).To(HaveLen(1))
		Expect(failed[0]).To(MatchError(lifecycle.ErrConflictingTransition))
	})

	It("records a single editorial decision", func() {
		errs := concurrently(2, func(i int) error {
			if i == 0 {
				return e.approval.Approve(e.ctx, resp.AdvertisementID, "mod-1")
			}
			return e.approval.Reject(e.ctx, resp.AdvertisementID, "mod-2", "misleading claims")
		})

		ok, failed := split(errs)
		Expect(ok).To(Equal(1))
		Expect(failed).To(HaveLen(1))
		Expect(failed[0]).To(MatchError(lifecycle.ErrAlreadyDecided))

		stored := e.find(resp.AdvertisementID)
		Expect(stored.ApprovalState()).NotTo(Equal(lifecycle.ApprovalPending))
		Expect(stored.Version()).To(Equal(version + 1))
		Expect(e.notifier.kinds()).To(HaveLen(1))
	})
})
