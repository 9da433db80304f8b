package schedule_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/schedule"
)

var _ = Describe("ComputeEndDate", func() {
	start := time.Date(2024, 1, 31, 10, 30, 0, 0, time.UTC)

	DescribeTable("adds durations",
		func(value int, unit ad.DurationUnit, expected time.Time) {
			end, err := schedule.ComputeEndDate(start, value, unit)
			Expect(err).NotTo(HaveOccurred())
			Expect(end).To(Equal(expected))
		},
		Entry("minutes", 90, ad.DurationMinutes, time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)),
		Entry("hours", 24, ad.DurationHours, time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)),
		Entry("days", 1, ad.DurationDays, time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)),
		Entry("weeks", 2, ad.DurationWeeks, time.Date(2024, 2, 14, 10, 30, 0, 0, time.UTC)),
		Entry("one month clamps to leap February", 1, ad.DurationMonths, time.Date(2024, 2, 29, 10, 30, 0, 0, time.UTC)),
		Entry("two months keep the day", 2, ad.DurationMonths, time.Date(2024, 3, 31, 10, 30, 0, 0, time.UTC)),
		Entry("thirteen months clamp to common February", 13, ad.DurationMonths, time.Date(2025, 2, 28, 10, 30, 0, 0, time.UTC)),
	)

	It("returns 2024-02-29 for 2024-01-31 plus one month", func() {
		end, err := schedule.ComputeEndDate(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 1, ad.DurationMonths)
		Expect(err).NotTo(HaveOccurred())
		Expect(end.Format("2006-01-02")).To(Equal("2024-02-29"))
	})

	It("is strictly after the start and non-decreasing in the duration", func() {
		starts := []time.Time{
			start,
			time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC),
			time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		}
		for _, s := range starts {
			for _, unit := range ad.DurationUnits() {
				previous := s
				for n := 1; n <= 26; n++ {
					end, err := schedule.ComputeEndDate(s, n, unit)
					Expect(err).NotTo(HaveOccurred())
					Expect(end.After(s)).To(BeTrue(), "%s + %d %s", s, n, unit)
					Expect(end.Before(previous)).To(BeFalse(), "%s + %d %s", s, n, unit)
					previous = end
				}
			}
		}
	})

	It("rejects non-positive durations", func() {
		_, err := schedule.ComputeEndDate(start, 0, ad.DurationDays)
		Expect(err).To(MatchError(schedule.ErrInvalidDuration))
		_, err = schedule.ComputeEndDate(start, -3, ad.DurationMonths)
		Expect(err).To(MatchError(schedule.ErrInvalidDuration))
	})

	It("rejects unknown units", func() {
		_, err := schedule.ComputeEndDate(start, 1, ad.DurationUnit("fortnights"))
		Expect(err).To(MatchError(ad.ErrInvalidEnumValue))
	})
})
