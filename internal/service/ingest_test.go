package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/service"
)

var _ = Describe("IngestService", func() {
	const owner = "u42"

	var (
		ctx       context.Context
		producer  *mockProducer
		customers *mockCustomerStore
		svc       service.IngestService
	)

	BeforeEach(func() {
		ctx = context.Background()
		producer = &mockProducer{}
		customers = &mockCustomerStore{}
		svc = service.NewIngestService(customers, producer, "customer_ingestion_stream", "order_ingestion_stream")
	})

	Describe("IngestCustomers", func() {
		It("publishes one normalized item per customer", func() {
			name := "Ada"
			n, err := svc.IngestCustomers(ctx, owner, []service.CustomerInput{
				{Email: " Ada@Example.com ", Name: &name},
				{Email: "bob@example.com"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			Expect(producer.calls).To(HaveLen(1))
			Expect(producer.calls[0].stream).To(Equal("customer_ingestion_stream"))
			rec, err := codec.DecodeCustomer(producer.calls[0].records[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Email).To(Equal("ada@example.com"))
			Expect(rec.OwnerID).To(Equal(owner))
			Expect(*rec.Name).To(Equal("Ada"))
		})

		It("rejects a bad email before publishing anything", func() {
			_, err := svc.IngestCustomers(ctx, owner, []service.CustomerInput{
				{Email: "ok@example.com"},
				{Email: "not-an-email"},
			})
			var verr *service.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Field).To(Equal("customers[1].email"))
			Expect(producer.calls).To(BeEmpty())
		})

		It("surfaces transport failures", func() {
			producer.publishFn = func(context.Context, string, ...codec.Fields) ([]string, error) {
				return nil, &queue.TransportError{Op: "xadd", Stream: "customer_ingestion_stream", Err: errors.New("refused")}
			}
			_, err := svc.IngestCustomers(ctx, owner, []service.CustomerInput{{Email: "a@example.com"}})
			var terr *queue.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
		})
	})

	Describe("IngestOrders", func() {
		order := func(email, amount string) service.OrderInput {
			return service.OrderInput{
				Email:     email,
				Amount:    decimal.RequireFromString(amount),
				OrderDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				Items:     []string{"sku-1"},
			}
		}

		BeforeEach(func() {
			customers.resolveFn = func(_ context.Context, keys []model.CustomerKey) (map[model.CustomerKey]int64, error) {
				out := map[model.CustomerKey]int64{}
				for _, k := range keys {
					if k.Email == "known@example.com" {
						out[k] = 1001
					}
				}
				return out, nil
			}
		})

		It("looks customers up once and publishes resolvable orders with their customer id", func() {
			res, err := svc.IngestOrders(ctx, owner, []service.OrderInput{
				order("known@example.com", "10.50"),
				order("KNOWN@example.com", "4.50"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Published).To(Equal(2))
			Expect(res.FailedEmails).To(BeEmpty())
			Expect(customers.resolveCalls).To(Equal(1))

			rec, err := codec.DecodeOrder(producer.calls[0].records[1])
			Expect(err).NotTo(HaveOccurred())
			Expect(*rec.CustomerID).To(Equal("1001"))
			Expect(rec.Amount.String()).To(Equal("4.5"))
		})

		It("reports unknown emails once each and publishes the rest", func() {
			res, err := svc.IngestOrders(ctx, owner, []service.OrderInput{
				order("ghost@example.com", "1"),
				order("known@example.com", "2"),
				order("ghost@example.com", "3"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Published).To(Equal(1))
			Expect(res.FailedEmails).To(Equal([]string{"ghost@example.com"}))
			Expect(producer.calls[0].records).To(HaveLen(1))
		})

		It("publishes nothing when no customer resolves", func() {
			res, err := svc.IngestOrders(ctx, owner, []service.OrderInput{order("ghost@example.com", "1")})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Published).To(Equal(0))
			Expect(producer.calls).To(BeEmpty())
		})

		It("rejects non-positive amounts", func() {
			_, err := svc.IngestOrders(ctx, owner, []service.OrderInput{order("known@example.com", "0")})
			var verr *service.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(customers.resolveCalls).To(Equal(0))
		})
	})
})
