package handler_test

import (
	"context"

	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/service"
)

type mockIngestService struct {
	ingestCustomersFn func(ctx context.Context, ownerID string, customers []service.CustomerInput) (int, error)
	ingestOrdersFn    func(ctx context.Context, ownerID string, orders []service.OrderInput) (*service.OrderIngestResult, error)
}

func (m *mockIngestService) IngestCustomers(ctx context.Context, ownerID string, customers []service.CustomerInput) (int, error) {
	if m.ingestCustomersFn != nil {
		return m.ingestCustomersFn(ctx, ownerID, customers)
	}
	return len(customers), nil
}

func (m *mockIngestService) IngestOrders(ctx context.Context, ownerID string, orders []service.OrderInput) (*service.OrderIngestResult, error) {
	if m.ingestOrdersFn != nil {
		return m.ingestOrdersFn(ctx, ownerID, orders)
	}
	return &service.OrderIngestResult{Published: len(orders)}, nil
}

type mockCampaignService struct {
	dispatchFn func(ctx context.Context, params service.DispatchParams) (*service.DispatchResult, error)
	getFn      func(ctx context.Context, ownerID string, campaignID int64) (*model.Campaign, error)
}

func (m *mockCampaignService) Dispatch(ctx context.Context, params service.DispatchParams) (*service.DispatchResult, error) {
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, params)
	}
	return &service.DispatchResult{Campaign: &model.Campaign{}}, nil
}

func (m *mockCampaignService) Get(ctx context.Context, ownerID string, campaignID int64) (*model.Campaign, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, campaignID)
	}
	return nil, service.ErrCampaignNotFound
}

type mockReceiptService struct {
	recordFn func(ctx context.Context, update codec.StatusUpdate) (string, error)
}

func (m *mockReceiptService) Record(ctx context.Context, update codec.StatusUpdate) (string, error) {
	if m.recordFn != nil {
		return m.recordFn(ctx, update)
	}
	return "1-0", nil
}
