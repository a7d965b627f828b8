package codec

import (
	"fmt"

	"minicrm.app/pipeline/internal/model"
)

const (
	FieldCampaignID          = "campaignId"
	FieldVendorReference     = "vendor_reference"
	FieldPersonalizedMessage = "personalizedMessage"
	FieldCustomers           = "customers"
	FieldDeliveryStatus      = "delivery_status"
	FieldMessage             = "message"
)

// Recipient is one customer addressed by a delivery request.
type Recipient struct {
	CustomerID int64  `json:"customerId,string"`
	Email      string `json:"email"`
}

// DeliveryRequest is a delivery_simulation work item. A request carries either a
// single recipient (customerId/email fields) or a batch in the customers array.
type DeliveryRequest struct {
	VendorReference string
	Message         string
	Recipients      []Recipient
	CampaignID      int64
}

func DecodeDeliveryRequest(f Fields) (DeliveryRequest, error) {
	campaignID, err := f.Int64(FieldCampaignID)
	if err != nil {
		return DeliveryRequest{}, err
	}
	message, err := f.Required(FieldPersonalizedMessage)
	if err != nil {
		return DeliveryRequest{}, err
	}

	recipients := []Recipient{}
	if err := f.JSONArray(FieldCustomers, &recipients); err != nil {
		return DeliveryRequest{}, err
	}
	if recipients == nil {
		recipients = []Recipient{}
	}

	if single, err := f.OptionalInt64(FieldCustomerID); err != nil {
		return DeliveryRequest{}, err
	} else if single != nil {
		recipients = append(recipients, Recipient{CustomerID: *single, Email: f.Optional(FieldEmail)})
	}

	if len(recipients) == 0 {
		return DeliveryRequest{}, malformed(FieldCustomers, "", "no recipients")
	}
	for i, r := range recipients {
		if r.CustomerID <= 0 {
			return DeliveryRequest{}, malformed(FieldCustomers, "", fmt.Sprintf("recipient %d has no customerId", i))
		}
	}

	return DeliveryRequest{
		CampaignID:      campaignID,
		VendorReference: f.Optional(FieldVendorReference),
		Message:         message,
		Recipients:      recipients,
	}, nil
}

func EncodeDeliveryRequest(r DeliveryRequest) Fields {
	recipients := r.Recipients
	if recipients == nil {
		recipients = []Recipient{}
	}
	return Fields{
		FieldCampaignID:          formatInt(r.CampaignID),
		FieldVendorReference:     r.VendorReference,
		FieldPersonalizedMessage: r.Message,
		FieldCustomers:           encodeJSON(recipients),
	}
}

// StatusUpdate is a log_update work item: the vendor outcome for one recipient.
type StatusUpdate struct {
	VendorReference string
	Message         string
	Status          model.DeliveryStatus
	CampaignID      int64
	CustomerID      int64
}

func (u StatusUpdate) Change() model.StatusChange {
	return model.StatusChange{
		CampaignID:      u.CampaignID,
		CustomerID:      u.CustomerID,
		Status:          u.Status,
		Message:         u.Message,
		VendorReference: u.VendorReference,
	}
}

func DecodeStatusUpdate(f Fields) (StatusUpdate, error) {
	campaignID, err := f.Int64(FieldCampaignID)
	if err != nil {
		return StatusUpdate{}, err
	}
	customerID, err := f.Int64(FieldCustomerID)
	if err != nil {
		return StatusUpdate{}, err
	}
	raw, err := f.Required(FieldDeliveryStatus)
	if err != nil {
		return StatusUpdate{}, err
	}
	status := model.DeliveryStatus(raw)
	if !status.Terminal() {
		return StatusUpdate{}, malformed(FieldDeliveryStatus, raw, "must be sent or failed")
	}
	return StatusUpdate{
		CampaignID:      campaignID,
		CustomerID:      customerID,
		Status:          status,
		VendorReference: f.Optional(FieldVendorReference),
		Message:         f.Optional(FieldMessage),
	}, nil
}

func EncodeStatusUpdate(u StatusUpdate) Fields {
	return Fields{
		FieldCampaignID:      formatInt(u.CampaignID),
		FieldCustomerID:      formatInt(u.CustomerID),
		FieldDeliveryStatus:  string(u.Status),
		FieldVendorReference: u.VendorReference,
		FieldMessage:         u.Message,
	}
}
