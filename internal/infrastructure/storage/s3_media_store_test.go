package storage_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/personal/ad-lifecycle/internal/domain/media"
	"github.com/personal/ad-lifecycle/internal/infrastructure/storage"
)

var _ = Describe("ObjectKey", func() {
	DescribeTable("resolves references in the bucket",
		func(ref, want string) {
			key, err := storage.ObjectKey("creatives", ref)
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal(want))
		},
		Entry("plain key", "ads/spring.png", "ads/spring.png"),
		Entry("leading slash", "/ads/spring.png", "ads/spring.png"),
		Entry("s3 uri", "s3://creatives/ads/spring.png", "ads/spring.png"),
		Entry("surrounding space", "  ads/spring.png ", "ads/spring.png"),
	)

	DescribeTable("reports unusable references as missing media",
		func(ref string) {
			_, err := storage.ObjectKey("creatives", ref)
			Expect(err).To(MatchError(media.ErrMediaNotFound))
		},
		Entry("empty", ""),
		Entry("another bucket", "s3://other/ads/spring.png"),
		Entry("bucket only", "s3://creatives"),
		Entry("bucket with empty key", "s3://creatives/"),
	)
})
