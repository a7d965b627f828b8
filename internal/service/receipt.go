package service

import (
	"context"
	"fmt"

	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/queue"
)

// ReceiptService forwards vendor delivery callbacks to the log_update stream.
type ReceiptService interface {
	Record(ctx context.Context, update codec.StatusUpdate) (string, error)
}

type receiptService struct {
	producer  queue.Producer
	logStream string
}

func NewReceiptService(producer queue.Producer, logStream string) ReceiptService {
	return &receiptService{producer: producer, logStream: logStream}
}

func (s *receiptService) Record(ctx context.Context, update codec.StatusUpdate) (string, error) {
	if !update.Status.Terminal() {
		return "", invalid("delivery_status", "must be sent or failed")
	}
	ids, err := s.producer.Publish(ctx, s.logStream, codec.EncodeStatusUpdate(update))
	if err != nil {
		return "", fmt.Errorf("publishing delivery receipt: %w", err)
	}
	return ids[0], nil
}
