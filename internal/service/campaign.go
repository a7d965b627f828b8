package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"minicrm.app/pipeline/common/id"
	"minicrm.app/pipeline/common/logger"
	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/store"
)

// MaxRecipientsPerItem caps the recipients carried by one delivery_simulation item.
const MaxRecipientsPerItem = 50

const namePlaceholder = "{{name}}"

type Recipient struct {
	Email      string
	Name       string
	CustomerID int64
}

type DispatchParams struct {
	Rules           json.RawMessage
	Name            string
	Objective       string
	Logic           model.CampaignLogic
	Message         string
	VendorReference string
	OwnerID         string
	Recipients      []Recipient
}

type DispatchResult struct {
	Campaign *model.Campaign
	// Items is how many delivery_simulation items were published.
	Items int
}

type CampaignService interface {
	// Dispatch records the campaign and one pending log per distinct recipient
	// and publishes the sends. Nothing is kept when publishing fails.
	Dispatch(ctx context.Context, params DispatchParams) (*DispatchResult, error)
	Get(ctx context.Context, ownerID string, campaignID int64) (*model.Campaign, error)
}

type campaignService struct {
	campaigns      store.CampaignStore
	txRunner       TxRunner
	producer       queue.Producer
	deliveryStream string
}

func NewCampaignService(campaigns store.CampaignStore, txRunner TxRunner, producer queue.Producer, deliveryStream string) CampaignService {
	return &campaignService{
		campaigns:      campaigns,
		txRunner:       txRunner,
		producer:       producer,
		deliveryStream: deliveryStream,
	}
}

func (s *campaignService) Dispatch(ctx context.Context, params DispatchParams) (*DispatchResult, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, invalid("name", "is required")
	}
	if strings.TrimSpace(params.Message) == "" {
		return nil, invalid("message", "is required")
	}
	if params.Logic == "" {
		params.Logic = model.CampaignLogicAnd
	}
	if params.Logic != model.CampaignLogicAnd && params.Logic != model.CampaignLogicOr {
		return nil, invalid("logic", "must be AND or OR")
	}
	if len(params.Rules) == 0 {
		params.Rules = json.RawMessage("[]")
	}

	recipients, err := distinctRecipients(params.Recipients)
	if err != nil {
		return nil, err
	}

	ref := params.VendorReference
	if ref == "" {
		ref = id.VendorReference()
	}

	campaign := &model.Campaign{
		ID:           id.New(),
		OwnerID:      params.OwnerID,
		Name:         params.Name,
		Objective:    params.Objective,
		Rules:        params.Rules,
		Logic:        params.Logic,
		AudienceSize: int32(len(recipients)),
		Status:       model.CampaignStatusRunning,
	}
	if len(recipients) == 0 {
		campaign.Status = model.CampaignStatusCompleted
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		CampaignID: logger.Ptr(campaign.ID),
		OwnerID:    logger.Ptr(params.OwnerID),
	})

	logs := make([]model.CommunicationLog, 0, len(recipients))
	for _, r := range recipients {
		logs = append(logs, model.CommunicationLog{
			ID:              id.New(),
			CampaignID:      campaign.ID,
			CustomerID:      r.CustomerID,
			Message:         Render(params.Message, r),
			VendorReference: ref,
			DeliveryStatus:  model.DeliveryStatusPending,
		})
	}

	items := DeliveryItems(campaign.ID, ref, params.Message, recipients)

	// Publishing happens before commit so a transport failure leaves no
	// running campaign behind. Items published for a campaign whose commit
	// then fails find no pending log and change nothing.
	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if err := sp.Campaigns().Create(ctx, campaign); err != nil {
			return fmt.Errorf("creating campaign: %w", err)
		}
		if len(logs) == 0 {
			return nil
		}
		if _, err := sp.CommunicationLogs().CreatePending(ctx, logs); err != nil {
			return fmt.Errorf("creating communication logs: %w", err)
		}
		if _, err := s.producer.Publish(ctx, s.deliveryStream, items...); err != nil {
			return fmt.Errorf("publishing deliveries: %w", err)
		}
		return nil
	})
	if err != nil {
		if store.IsPermanent(err) {
			return nil, invalid("recipients", "rejected by the database: %v", err)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "campaign dispatched",
		"audience_size", campaign.AudienceSize,
		"delivery_items", len(items))
	return &DispatchResult{Campaign: campaign, Items: len(items)}, nil
}

func (s *campaignService) Get(ctx context.Context, ownerID string, campaignID int64) (*model.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("fetching campaign: %w", err)
	}
	if campaign.OwnerID != ownerID {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

func distinctRecipients(in []Recipient) ([]Recipient, error) {
	seen := make(map[int64]struct{}, len(in))
	out := make([]Recipient, 0, len(in))
	for i, r := range in {
		if r.CustomerID <= 0 {
			return nil, invalid(fmt.Sprintf("recipients[%d].customerId", i), "must be a positive id")
		}
		if _, dup := seen[r.CustomerID]; dup {
			continue
		}
		seen[r.CustomerID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

// Render fills the name placeholder for one recipient.
func Render(message string, r Recipient) string {
	name := r.Name
	if name == "" {
		name = "there"
	}
	return strings.ReplaceAll(message, namePlaceholder, name)
}

// DeliveryItems groups recipients by their rendered message, keeping first-seen
// order, and splits each group into items of at most MaxRecipientsPerItem.
func DeliveryItems(campaignID int64, ref, message string, recipients []Recipient) []codec.Fields {
	var order []string
	groups := make(map[string][]codec.Recipient)
	for _, r := range recipients {
		rendered := Render(message, r)
		if _, ok := groups[rendered]; !ok {
			order = append(order, rendered)
		}
		groups[rendered] = append(groups[rendered], codec.Recipient{CustomerID: r.CustomerID, Email: r.Email})
	}

	var items []codec.Fields
	for _, rendered := range order {
		group := groups[rendered]
		for start := 0; start < len(group); start += MaxRecipientsPerItem {
			end := min(start+MaxRecipientsPerItem, len(group))
			items = append(items, codec.EncodeDeliveryRequest(codec.DeliveryRequest{
				CampaignID:      campaignID,
				VendorReference: ref,
				Message:         rendered,
				Recipients:      group[start:end],
			}))
		}
	}
	return items
}
