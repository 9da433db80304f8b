package service_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
	"github.com/personal/ad-lifecycle/internal/domain/notification"
)

var _ = Describe("ApprovalGate", func() {
	var (
		e    *env
		resp *service.SubmitAdResponse
	)

	BeforeEach(func() {
		e = newEnv()
		resp = e.submit(nil)
	})

	It("approves a pending ad and records the moderator", func() {
		Expect(e.approval.Approve(e.ctx, resp.AdvertisementID, "mod-1")).To(Succeed())

		stored := e.find(resp.AdvertisementID)
		Expect(stored.ApprovalState()).To(Equal(lifecycle.ApprovalApproved))
		Expect(stored.DecidedBy()).To(Equal("mod-1"))
		Expect(*stored.DecidedAt()).To(Equal(e.now))
		Expect(e.notifier.kinds()).To(Equal([]notification.Kind{notification.KindAdApproved}))
	})

	It("rejects with a reason and archives the ad", func() {
		Expect(e.approval.Reject(e.ctx, resp.AdvertisementID, "mod-1", "misleading claims")).To(Succeed())

		stored := e.find(resp.AdvertisementID)
		Expect(stored.ApprovalState()).To(Equal(lifecycle.ApprovalRejected))
		Expect(stored.RejectionReason()).To(Equal("misleading claims"))
		Expect(stored.IsArchived()).To(BeTrue())
		Expect(stored.ArchiveReason()).To(Equal(ad.ArchiveReasonRejected))
		Expect(stored.Eligibility(e.now)).To(Equal(lifecycle.EligibilityRejected))
		Expect(e.notifier.kinds()).To(Equal([]notification.Kind{notification.KindAdRejected}))
	})

	It("requires a rejection reason", func() {
		err := e.approval.Reject(e.ctx, resp.AdvertisementID, "mod-1", "  ")
		Expect(err).To(MatchError(ad.ErrReasonRequired))
		Expect(e.find(resp.AdvertisementID).ApprovalState()).To(Equal(lifecycle.ApprovalPending))
	})

	It("requires a moderator", func() {
		Expect(e.approval.Approve(e.ctx, resp.AdvertisementID, "")).To(MatchError(ad.ErrInvalidModerator))
	})

	DescribeTable("refuses to decide twice",
		func(first, second func(id string) error, want lifecycle.ApprovalState) {
			Expect(first(resp.AdvertisementID)).To(Succeed())
			version := e.find(resp.AdvertisementID).Version()

			Expect(second(resp.AdvertisementID)).To(MatchError(lifecycle.ErrAlreadyDecided))

			stored := e.find(resp.AdvertisementID)
			Expect(stored.ApprovalState()).To(Equal(want))
			Expect(stored.Version()).To(Equal(version))
		},
		Entry("approve then approve",
			func(id string) error { return e.approval.Approve(e.ctx, id, "mod-1") },
			func(id string) error { return e.approval.Approve(e.ctx, id, "mod-2") },
			lifecycle.ApprovalApproved),
		Entry("approve then reject",
			func(id string) error { return e.approval.Approve(e.ctx, id, "mod-1") },
			func(id string) error { return e.approval.Reject(e.ctx, id, "mod-2", "changed my mind") },
			lifecycle.ApprovalApproved),
		Entry("reject then approve",
			func(id string) error { return e.approval.Reject(e.ctx, id, "mod-1", "off-brand") },
			func(id string) error { return e.approval.Approve(e.ctx, id, "mod-2") },
			lifecycle.ApprovalRejected),
	)

	It("reports unknown ads", func() {
		err := e.approval.Approve(e.ctx, ad.NewAdID().String(), "mod-1")
		Expect(err).To(MatchError(ad.ErrAdNotFound))
	})

	Describe("ListPending", func() {
		It("lists undecided ads oldest first with paging", func() {
			e.now = e.now.Add(1)
			second := e.submit(nil)
			e.now = e.now.Add(1)
			third := e.submit(nil)
			Expect(e.approval.Approve(e.ctx, third.AdvertisementID, "mod-1")).To(Succeed())

			items, err := e.approval.ListPending(e.ctx, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].AdvertisementID).To(Equal(resp.AdvertisementID))
			Expect(items[1].AdvertisementID).To(Equal(second.AdvertisementID))

			items, err = e.approval.ListPending(e.ctx, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].AdvertisementID).To(Equal(second.AdvertisementID))
		})
	})
})
