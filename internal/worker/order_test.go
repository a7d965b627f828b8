package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
)

var _ = Describe("OrderIngestor", func() {
	var (
		ctx    context.Context
		stream *fakeStream
		db     *memDB
		w      *Worker[codec.OrderRecord]
	)

	BeforeEach(func() {
		ctx = context.Background()
		stream = newFakeStream("order_ingestion_stream")
		db = newMemDB()
		db.seedCustomer(1, owner, "a@y.z")
		db.seedCustomer(2, owner, "b@y.z")
		ingestor := NewOrderIngestor(db.Customers(), db)
		ingestor.newID = sequentialIDs(1000)
		w = New[codec.OrderRecord](stream, ingestor, testConfig("order", stream.name), WithClock(fakeClock()))
		w.replayPending = false
	})

	Describe("AccumulateSpend", func() {
		It("sums per customer and takes the last order's date", func() {
			first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			last := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			deltas := AccumulateSpend([]model.Order{
				{CustomerID: 1, Amount: decimal.RequireFromString("10.50"), OrderDate: first},
				{CustomerID: 2, Amount: decimal.RequireFromString("1"), OrderDate: first},
				{CustomerID: 1, Amount: decimal.RequireFromString("4.50"), OrderDate: last},
			})

			Expect(deltas).To(HaveLen(2))
			Expect(deltas[0].CustomerID).To(Equal(int64(1)))
			Expect(deltas[0].Amount.String()).To(Equal("15"))
			Expect(deltas[0].Orders).To(Equal(int32(2)))
			Expect(deltas[0].LastPurchased).To(Equal(last))
		})
	})

	DescribeTable("total spend equals the sum of amounts however the orders are batched",
		func(batchSize int64) {
			w.cfg.BatchSize = batchSize
			amounts := []string{"10.10", "0.90", "5", "99.99", "0.01", "3.33", "7"}
			for _, a := range amounts {
				stream.add(orderFields("a@y.z", a))
			}
			for i := 0; i < len(amounts); i++ {
				Expect(w.cycle(ctx)).To(Succeed())
			}

			c := db.customer(owner, "a@y.z")
			Expect(c.TotalSpend.String()).To(Equal("126.33"))
			Expect(c.Visits).To(Equal(int32(len(amounts))))
			Expect(stream.pendingIDs()).To(BeEmpty())
		},
		Entry("one at a time", int64(1)),
		Entry("in threes", int64(3)),
		Entry("all together", int64(10)),
	)

	It("resolves every customer in one lookup per batch", func() {
		stream.add(orderFields("a@y.z", "1"), orderFields("b@y.z", "2"), orderFields("a@y.z", "3"))
		Expect(w.cycle(ctx)).To(Succeed())

		Expect(db.callCount("customers.resolve")).To(Equal(1))
		Expect(db.customer(owner, "a@y.z").TotalSpend.String()).To(Equal("4"))
		Expect(db.customer(owner, "b@y.z").TotalSpend.String()).To(Equal("2"))
	})

	It("dead-letters orders for unknown customers and writes the rest", func() {
		ids := stream.add(orderFields("a@y.z", "5"), orderFields("ghost@y.z", "9"))
		Expect(w.cycle(ctx)).To(Succeed())

		dead := stream.deadLetters()
		Expect(dead).To(HaveLen(1))
		Expect(dead[0].item.ID).To(Equal(ids[1]))
		Expect(rejectionReason(&UnresolvedReferenceError{})).To(Equal("unresolved"))
		Expect(stream.pendingIDs()).To(BeEmpty())
		Expect(db.customer(owner, "a@y.z").TotalSpend.String()).To(Equal("5"))
	})

	It("isolates one bad amount without blocking the others", func() {
		stream.add(orderFields("a@y.z", "5"))
		bad := stream.add(codec.Fields{
			codec.FieldOwner:     owner,
			codec.FieldEmail:     "a@y.z",
			codec.FieldAmount:    "abc",
			codec.FieldOrderDate: "2024-05-01",
		})
		stream.add(orderFields("b@y.z", "6"))

		Expect(w.cycle(ctx)).To(Succeed())

		dead := stream.deadLetters()
		Expect(dead).To(HaveLen(1))
		Expect(dead[0].item.ID).To(Equal(bad[0]))
		Expect(stream.ackedIDs()).To(HaveLen(3))
		Expect(db.customer(owner, "a@y.z").TotalSpend.String()).To(Equal("5"))
		Expect(db.customer(owner, "b@y.z").TotalSpend.String()).To(Equal("6"))
	})

	It("rolls back and counts nothing when the spend update fails", func() {
		ids := stream.add(orderFields("a@y.z", "5"))
		db.failOnce("customers.spend", errors.New("deadlock detected"))

		Expect(w.cycle(ctx)).To(HaveOccurred())
		Expect(stream.pendingIDs()).To(Equal(ids))
		Expect(db.customer(owner, "a@y.z").TotalSpend.IsZero()).To(BeTrue())

		Expect(w.cycle(ctx)).To(Succeed())
		Expect(db.customer(owner, "a@y.z").TotalSpend.String()).To(Equal("5"))
		Expect(stream.pendingIDs()).To(BeEmpty())
	})

	It("does not count a redelivered order twice", func() {
		stream.add(orderFields("a@y.z", "5"))
		stream.ackErr = errors.New("ack lost")
		Expect(w.cycle(ctx)).To(HaveOccurred())
		stream.ackErr = nil

		Expect(w.cycle(ctx)).To(Succeed())
		Expect(db.customer(owner, "a@y.z").TotalSpend.String()).To(Equal("5"))
		Expect(db.customer(owner, "a@y.z").Visits).To(Equal(int32(1)))
		Expect(stream.pendingIDs()).To(BeEmpty())
	})

	It("writes items one by one when the database rejects the batch", func() {
		ids := stream.add(orderFields("a@y.z", "5"), orderFields("b@y.z", "6"))
		db.rejectOrder = func(o model.Order) error {
			if o.Amount.Equal(decimal.NewFromInt(5)) {
				return &pgconn.PgError{Code: "22003", Message: "numeric field overflow"}
			}
			return nil
		}

		Expect(w.cycle(ctx)).To(Succeed())

		Expect(stream.ackedIDs()).To(ConsistOf(ids))
		Expect(stream.deadLetters()).To(HaveLen(1))
		Expect(stream.deadLetters()[0].item.ID).To(Equal(ids[0]))
		Expect(db.customer(owner, "b@y.z").TotalSpend.String()).To(Equal("6"))
	})
})
