package queue

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"minicrm.app/pipeline/internal/codec"
)

var _ = Describe("work item conversion", func() {
	It("stringifies every value of the stream entry", func() {
		item := toWorkItem("orders", redis.XMessage{
			ID:     "1-0",
			Values: map[string]any{"amount": "12.50", "owner": int64(7)},
		})

		Expect(item.ID).To(Equal("1-0"))
		Expect(item.Stream).To(Equal("orders"))
		Expect(item.Fields).To(Equal(codec.Fields{"amount": "12.50", "owner": "7"}))
	})

	It("copies fields into XADD values", func() {
		values := toValues(codec.Fields{"email": "a@x.com"})
		Expect(values).To(HaveKeyWithValue("email", "a@x.com"))
	})

	It("recognises an existing group as success", func() {
		Expect(isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists"))).To(BeTrue())
		Expect(isBusyGroup(errors.New("NOGROUP"))).To(BeFalse())
		Expect(isBusyGroup(nil)).To(BeFalse())
	})
})
