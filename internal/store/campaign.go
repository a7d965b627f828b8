package store

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"

	"minicrm.app/pipeline/core/db/sqlc"
	"minicrm.app/pipeline/internal/model"
)

type campaignStore struct {
	queries *sqlc.Queries
}

func newCampaignStore(queries *sqlc.Queries) CampaignStore {
	return &campaignStore{queries: queries}
}

func (s *campaignStore) Create(ctx context.Context, c *model.Campaign) error {
	rules := []byte(c.Rules)
	if len(rules) == 0 {
		rules = []byte("[]")
	}
	if c.Logic == "" {
		c.Logic = model.CampaignLogicAnd
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusRunning
	}
	row, err := s.queries.CreateCampaign(ctx, sqlc.CreateCampaignParams{
		ID:           c.ID,
		OwnerID:      c.OwnerID,
		Name:         c.Name,
		Rules:        rules,
		Logic:        string(c.Logic),
		Objective:    c.Objective,
		AudienceSize: c.AudienceSize,
		Status:       string(c.Status),
	})
	if err != nil {
		return err
	}
	// Update the model with DB-generated fields
	*c = *toCampaignModel(row)
	return nil
}

func (s *campaignStore) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	row, err := s.queries.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toCampaignModel(row), nil
}

func (s *campaignStore) IncrementDeliveryStats(ctx context.Context, deltas []model.CampaignDelta) ([]model.CampaignProgress, error) {
	if len(deltas) == 0 {
		return nil, nil
	}

	sorted := make([]model.CampaignDelta, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CampaignID < sorted[j].CampaignID })

	arg := sqlc.IncrementDeliveryStatsParams{
		Ids:    make([]int64, 0, len(sorted)),
		Sent:   make([]int32, 0, len(sorted)),
		Failed: make([]int32, 0, len(sorted)),
	}
	for _, d := range sorted {
		arg.Ids = append(arg.Ids, d.CampaignID)
		arg.Sent = append(arg.Sent, d.Sent)
		arg.Failed = append(arg.Failed, d.Failed)
	}

	rows, err := s.queries.IncrementDeliveryStats(ctx, arg)
	if err != nil {
		return nil, &BulkWriteError{Op: "campaign increment", Rows: len(arg.Ids), Err: err}
	}

	progress := make([]model.CampaignProgress, 0, len(rows))
	for _, row := range rows {
		progress = append(progress, model.CampaignProgress{
			CampaignID:    row.ID,
			AudienceSize:  row.AudienceSize,
			DeliveryStats: model.DeliveryStats{Sent: row.SentCount, Failed: row.FailedCount},
			Status:        model.CampaignStatus(row.Status),
		})
	}
	return progress, nil
}

func (s *campaignStore) Complete(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	completed, err := s.queries.CompleteCampaigns(ctx, ids)
	if err != nil {
		return nil, &BulkWriteError{Op: "campaign completion", Rows: len(ids), Err: err}
	}
	return completed, nil
}

// toCampaignModel converts sqlc.Campaign to model.Campaign
func toCampaignModel(row sqlc.Campaign) *model.Campaign {
	return &model.Campaign{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Name:          row.Name,
		Rules:         row.Rules,
		Logic:         model.CampaignLogic(row.Logic),
		Objective:     row.Objective,
		AudienceSize:  row.AudienceSize,
		DeliveryStats: model.DeliveryStats{Sent: row.SentCount, Failed: row.FailedCount},
		Status:        model.CampaignStatus(row.Status),
		CompletedAt:   row.CompletedAt,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
