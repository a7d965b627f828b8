package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"minicrm.app/pipeline/internal/http/handler"
	"minicrm.app/pipeline/internal/http/middleware"
	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/service"
)

var _ = Describe("IngestHandler", func() {
	var (
		router *gin.Engine
		svc    *mockIngestService
	)

	BeforeEach(func() {
		router = newRouter()
		svc = &mockIngestService{}
		h := handler.NewIngestHandler(svc)
		group := router.Group("", middleware.RequireOwner())
		group.POST("/customers/ingest", h.Customers)
		group.POST("/orders/ingest", h.Orders)
	})

	Describe("Customers", func() {
		It("accepts a single customer object", func() {
			var got []service.CustomerInput
			var owner string
			svc.ingestCustomersFn = func(_ context.Context, ownerID string, customers []service.CustomerInput) (int, error) {
				owner, got = ownerID, customers
				return len(customers), nil
			}

			w := do(router, http.MethodPost, "/customers/ingest", `{"name":"Ada","email":"ada@example.com"}`, "42")

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(owner).To(Equal("42"))
			Expect(got).To(HaveLen(1))
			Expect(*got[0].Name).To(Equal("Ada"))
			Expect(got[0].Phone).To(BeNil())
		})

		It("accepts an array of customers", func() {
			w := do(router, http.MethodPost, "/customers/ingest",
				`[{"email":"a@example.com"},{"email":"b@example.com","phone":"123"}]`, "42")

			Expect(w.Code).To(Equal(http.StatusAccepted))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["queued"]).To(BeEquivalentTo(2))
		})

		It("returns 400 when an element has no valid email", func() {
			w := do(router, http.MethodPost, "/customers/ingest", `[{"email":"a@example.com"},{"name":"x"}]`, "42")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 401 without an owner", func() {
			w := do(router, http.MethodPost, "/customers/ingest", `{"email":"a@example.com"}`, "")
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("returns 503 when the stream is unreachable", func() {
			svc.ingestCustomersFn = func(context.Context, string, []service.CustomerInput) (int, error) {
				return 0, &queue.TransportError{Op: "xadd", Stream: "customer_ingestion_stream", Err: errors.New("refused")}
			}
			w := do(router, http.MethodPost, "/customers/ingest", `{"email":"a@example.com"}`, "42")
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("Orders", func() {
		body := `[{"email":"a@example.com","orderDate":"2024-05-01T00:00:00Z","amount":12.5,"items":["x"]},
		          {"email":"ghost@example.com","orderDate":"2024-05-01T00:00:00Z","amount":"3"}]`

		It("passes amounts and dates through and answers 202", func() {
			var got []service.OrderInput
			svc.ingestOrdersFn = func(_ context.Context, _ string, orders []service.OrderInput) (*service.OrderIngestResult, error) {
				got = orders
				return &service.OrderIngestResult{Published: 2}, nil
			}

			w := do(router, http.MethodPost, "/orders/ingest", body, "42")

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(got).To(HaveLen(2))
			Expect(got[0].Amount.String()).To(Equal("12.5"))
			Expect(got[1].Amount.String()).To(Equal("3"))
			Expect(got[0].OrderDate.Year()).To(Equal(2024))
		})

		It("answers 207 with the unknown emails", func() {
			svc.ingestOrdersFn = func(context.Context, string, []service.OrderInput) (*service.OrderIngestResult, error) {
				return &service.OrderIngestResult{Published: 1, FailedEmails: []string{"ghost@example.com"}}, nil
			}

			w := do(router, http.MethodPost, "/orders/ingest", body, "42")

			Expect(w.Code).To(Equal(http.StatusMultiStatus))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["failed_emails"]).To(ConsistOf("ghost@example.com"))
			Expect(resp["success"]).To(BeFalse())
		})

		It("returns 400 on service validation errors", func() {
			svc.ingestOrdersFn = func(context.Context, string, []service.OrderInput) (*service.OrderIngestResult, error) {
				return nil, &service.ValidationError{Field: "orders[0].amount", Reason: "must be positive"}
			}
			w := do(router, http.MethodPost, "/orders/ingest", body, "42")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 on unexpected errors", func() {
			svc.ingestOrdersFn = func(context.Context, string, []service.OrderInput) (*service.OrderIngestResult, error) {
				return nil, errors.New("boom")
			}
			w := do(router, http.MethodPost, "/orders/ingest", body, "42")
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})
})
