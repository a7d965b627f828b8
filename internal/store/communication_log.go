package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"minicrm.app/pipeline/core/db/sqlc"
	"minicrm.app/pipeline/internal/model"
)

type communicationLogStore struct {
	queries *sqlc.Queries
}

func newCommunicationLogStore(queries *sqlc.Queries) CommunicationLogStore {
	return &communicationLogStore{queries: queries}
}

func (s *communicationLogStore) CreatePending(ctx context.Context, logs []model.CommunicationLog) (int64, error) {
	if len(logs) == 0 {
		return 0, nil
	}

	n := len(logs)
	arg := sqlc.CreatePendingLogsParams{
		Ids:              make([]int64, 0, n),
		CampaignIds:      make([]int64, 0, n),
		CustomerIds:      make([]int64, 0, n),
		Messages:         make([]string, 0, n),
		VendorReferences: make([]string, 0, n),
	}
	for _, l := range logs {
		arg.Ids = append(arg.Ids, l.ID)
		arg.CampaignIds = append(arg.CampaignIds, l.CampaignID)
		arg.CustomerIds = append(arg.CustomerIds, l.CustomerID)
		arg.Messages = append(arg.Messages, l.Message)
		arg.VendorReferences = append(arg.VendorReferences, l.VendorReference)
	}

	affected, err := s.queries.CreatePendingLogs(ctx, arg)
	if err != nil {
		return 0, &BulkWriteError{Op: "communication log insert", Rows: n, Err: err}
	}
	return affected, nil
}

func (s *communicationLogStore) ApplyStatuses(ctx context.Context, changes []model.StatusChange) ([]model.StatusChange, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	n := len(changes)
	arg := sqlc.ApplyDeliveryStatusesParams{
		CampaignIds:      make([]int64, 0, n),
		CustomerIds:      make([]int64, 0, n),
		Statuses:         make([]string, 0, n),
		Messages:         make([]string, 0, n),
		VendorReferences: make([]string, 0, n),
	}
	for _, c := range changes {
		arg.CampaignIds = append(arg.CampaignIds, c.CampaignID)
		arg.CustomerIds = append(arg.CustomerIds, c.CustomerID)
		arg.Statuses = append(arg.Statuses, string(c.Status))
		arg.Messages = append(arg.Messages, c.Message)
		arg.VendorReferences = append(arg.VendorReferences, c.VendorReference)
	}

	rows, err := s.queries.ApplyDeliveryStatuses(ctx, arg)
	if err != nil {
		return nil, &BulkWriteError{Op: "delivery status update", Rows: n, Err: err}
	}

	applied := make([]model.StatusChange, 0, len(rows))
	for _, row := range rows {
		applied = append(applied, model.StatusChange{
			CampaignID:      row.CampaignID,
			CustomerID:      row.CustomerID,
			Status:          model.DeliveryStatus(row.DeliveryStatus),
			Message:         row.Message,
			VendorReference: row.VendorReference,
		})
	}
	return applied, nil
}

func (s *communicationLogStore) GetByKey(ctx context.Context, key model.LogKey) (*model.CommunicationLog, error) {
	row, err := s.queries.GetCommunicationLog(ctx, sqlc.GetCommunicationLogParams{
		CampaignID: key.CampaignID,
		CustomerID: key.CustomerID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toCommunicationLogModel(row), nil
}

// toCommunicationLogModel converts sqlc.CommunicationLog to model.CommunicationLog
func toCommunicationLogModel(row sqlc.CommunicationLog) *model.CommunicationLog {
	return &model.CommunicationLog{
		ID:              row.ID,
		CampaignID:      row.CampaignID,
		CustomerID:      row.CustomerID,
		Message:         row.Message,
		DeliveryStatus:  model.DeliveryStatus(row.DeliveryStatus),
		VendorReference: row.VendorReference,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}
