package payment_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/domain/payment"
)

var _ = Describe("Session", func() {
	var (
		created time.Time
		session *payment.Session
	)

	BeforeEach(func() {
		created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		var err error
		session, err = payment.NewSession("cs_1", "ad-1", decimal.RequireFromString("360.00"), "USD", "https://pay.example/cs_1", created)
		Expect(err).NotTo(HaveOccurred())
	})

	It("starts in the created state", func() {
		Expect(session.State()).To(Equal(payment.SessionCreated))
		Expect(session.CompletedAt()).To(BeNil())
	})

	It("requires an id and a positive amount", func() {
		_, err := payment.NewSession(" ", "ad-1", decimal.NewFromInt(10), "USD", "", created)
		Expect(err).To(MatchError(payment.ErrInvalidSessionID))
		_, err = payment.NewSession("cs_2", "ad-1", decimal.Zero, "USD", "", created)
		Expect(err).To(MatchError(payment.ErrInvalidAmount))
	})

	Describe("Terminate", func() {
		It("moves to the outcome of the event once", func() {
			at := created.Add(time.Minute)
			changed, err := session.Terminate(payment.EventCompleted, at)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(session.State()).To(Equal(payment.SessionCompleted))
			Expect(*session.CompletedAt()).To(Equal(at))

			changed, err = session.Terminate(payment.EventCompleted, at.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
			Expect(*session.CompletedAt()).To(Equal(at))
		})

		It("refuses a different outcome after a terminal one", func() {
			_, _ = session.Terminate(payment.EventFailed, created)

			_, err := session.Terminate(payment.EventCompleted, created)
			Expect(err).To(MatchError(payment.ErrSessionNotCreated))
			Expect(session.State()).To(Equal(payment.SessionFailed))
		})
	})

	Describe("ParseEventType", func() {
		It("maps each event to its outcome", func() {
			for raw, outcome := range map[string]payment.SessionState{
				"COMPLETED": payment.SessionCompleted,
				"failed":    payment.SessionFailed,
				" Expired ": payment.SessionExpired,
			} {
				event, err := payment.ParseEventType(raw)
				Expect(err).NotTo(HaveOccurred())
				Expect(event.Outcome()).To(Equal(outcome))
			}
		})

		It("rejects unknown events", func() {
			_, err := payment.ParseEventType("REFUNDED")
			Expect(err).To(MatchError(payment.ErrInvalidEventType))
		})
	})

	It("reports terminal states", func() {
		Expect(payment.SessionCreated.IsTerminal()).To(BeFalse())
		Expect(payment.SessionCompleted.IsTerminal()).To(BeTrue())
		Expect(payment.SessionFailed.IsTerminal()).To(BeTrue())
		Expect(payment.SessionExpired.IsTerminal()).To(BeTrue())
	})
})
