package service

import (
	"minicrm.app/pipeline/core/config"
	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/store"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	producer queue.Producer
	streams  config.StreamsConfig
}

func NewServices(stores *store.Stores, txRunner TxRunner, producer queue.Producer, streams config.StreamsConfig) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		producer: producer,
		streams:  streams,
	}
}

func (s *Services) Ingest() IngestService {
	return NewIngestService(s.stores.Customers(), s.producer, s.streams.Customer.Stream, s.streams.Order.Stream)
}

func (s *Services) Campaigns() CampaignService {
	return NewCampaignService(s.stores.Campaigns(), s.txRunner, s.producer, s.streams.Delivery.Stream)
}

func (s *Services) Receipts() ReceiptService {
	return NewReceiptService(s.producer, s.streams.LogUpdate.Stream)
}
