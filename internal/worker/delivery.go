package worker

import (
	"context"
	"log/slog"

	"minicrm.app/pipeline/common/id"
	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/vendor"
)

// DeliverySimulator sends every recipient of a delivery_simulation item
// through the vendor and reports exactly one outcome per recipient.
// A failed send is reported like a successful one and never retried.
type DeliverySimulator struct {
	vendor       vendor.Vendor
	notifier     vendor.Notifier
	newReference func() string
}

func NewDeliverySimulator(v vendor.Vendor, notifier vendor.Notifier) *DeliverySimulator {
	return &DeliverySimulator{vendor: v, notifier: notifier, newReference: id.VendorReference}
}

func (d *DeliverySimulator) Decode(fields codec.Fields) (codec.DeliveryRequest, error) {
	return codec.DecodeDeliveryRequest(fields)
}

func (d *DeliverySimulator) Write(ctx context.Context, batch []Decoded[codec.DeliveryRequest]) (Result, error) {
	updates := make([]codec.StatusUpdate, 0, len(batch))
	seen := make(map[model.LogKey]struct{})

	for _, entry := range batch {
		req := entry.Value
		ref := req.VendorReference
		if ref == "" {
			ref = d.newReference()
		}

		for _, recipient := range req.Recipients {
			key := model.LogKey{CampaignID: req.CampaignID, CustomerID: recipient.CustomerID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			outcome, err := d.vendor.Send(ctx, recipient, req.Message)
			if err != nil {
				return Result{}, err
			}
			updates = append(updates, codec.StatusUpdate{
				CampaignID:      req.CampaignID,
				CustomerID:      recipient.CustomerID,
				Status:          outcome.Status,
				Message:         outcome.Message,
				VendorReference: ref,
			})
		}
	}

	if err := d.notifier.Notify(ctx, updates); err != nil {
		return Result{}, err
	}

	sent, failed := vendor.Statuses(updates)
	slog.InfoContext(ctx, "delivery outcomes reported", "sent", sent, "failed", failed)
	return Result{Written: len(updates)}, nil
}
