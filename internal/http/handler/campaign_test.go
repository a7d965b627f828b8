package handler_test

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/http/handler"
	"minicrm.app/pipeline/internal/http/middleware"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/service"
)

var _ = Describe("CampaignHandler", func() {
	var (
		router *gin.Engine
		svc    *mockCampaignService
	)

	BeforeEach(func() {
		router = newRouter()
		svc = &mockCampaignService{}
		h := handler.NewCampaignHandler(svc)
		group := router.Group("/campaigns", middleware.RequireOwner())
		group.POST("/dispatch", h.Dispatch)
		group.GET("/:id", h.Get)
	})

	It("dispatches with string customer ids and reports the campaign", func() {
		var got service.DispatchParams
		svc.dispatchFn = func(_ context.Context, params service.DispatchParams) (*service.DispatchResult, error) {
			got = params
			return &service.DispatchResult{
				Campaign: &model.Campaign{ID: 1234567890123, Name: params.Name, AudienceSize: 2, Status: model.CampaignStatusRunning},
				Items:    1,
			}, nil
		}

		w := do(router, http.MethodPost, "/campaigns/dispatch", `{
			"name": "Spring",
			"message": "Hi {{name}}",
			"logic": "OR",
			"recipients": [{"customerId":"11","name":"Ada"},{"customerId":"12"}]
		}`, "42")

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(got.OwnerID).To(Equal("42"))
		Expect(got.Logic).To(Equal(model.CampaignLogicOr))
		Expect(got.Recipients).To(HaveLen(2))
		Expect(got.Recipients[0].CustomerID).To(Equal(int64(11)))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["campaign"]).To(HaveKeyWithValue("id", "1234567890123"))
		Expect(resp["delivery_items"]).To(BeEquivalentTo(1))
	})

	It("returns 400 for an unknown logic", func() {
		w := do(router, http.MethodPost, "/campaigns/dispatch", `{"name":"x","message":"y","logic":"XOR"}`, "42")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns the campaign progress", func() {
		svc.getFn = func(_ context.Context, ownerID string, campaignID int64) (*model.Campaign, error) {
			Expect(ownerID).To(Equal("42"))
			return &model.Campaign{ID: campaignID, AudienceSize: 3, DeliveryStats: model.DeliveryStats{Sent: 2, Failed: 1}, Status: model.CampaignStatusCompleted}, nil
		}

		w := do(router, http.MethodGet, "/campaigns/7", "", "42")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("completed"))
		Expect(resp["sent"]).To(BeEquivalentTo(2))
		Expect(resp["failed"]).To(BeEquivalentTo(1))
	})

	It("returns 404 for a campaign it cannot see", func() {
		w := do(router, http.MethodGet, "/campaigns/7", "", "42")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("ReceiptHandler", func() {
	var (
		router *gin.Engine
		svc    *mockReceiptService
	)

	BeforeEach(func() {
		router = newRouter()
		svc = &mockReceiptService{}
		router.POST("/vendor/receipt", handler.NewReceiptHandler(svc).Receive)
	})

	It("forwards a valid receipt", func() {
		var got codec.StatusUpdate
		svc.recordFn = func(_ context.Context, update codec.StatusUpdate) (string, error) {
			got = update
			return "5-0", nil
		}

		w := do(router, http.MethodPost, "/vendor/receipt",
			`{"campaignId":"1","customerId":"2","delivery_status":"failed","message":"bounced"}`, "")

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(got.CampaignID).To(Equal(int64(1)))
		Expect(got.CustomerID).To(Equal(int64(2)))
		Expect(got.Status).To(Equal(model.DeliveryStatusFailed))
		Expect(w.Body.String()).To(ContainSubstring("5-0"))
	})

	It("rejects a receipt without a terminal status", func() {
		w := do(router, http.MethodPost, "/vendor/receipt",
			`{"campaignId":"1","customerId":"2","delivery_status":"pending"}`, "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a receipt with a non-numeric id", func() {
		w := do(router, http.MethodPost, "/vendor/receipt",
			`{"campaignId":"abc","customerId":"2","delivery_status":"sent"}`, "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
