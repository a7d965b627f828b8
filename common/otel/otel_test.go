package otel_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/attribute"

	"minicrm.app/pipeline/common/otel"
	"minicrm.app/pipeline/core/config"
)

var _ = Describe("PipelineResource", func() {
	var cfg config.Config

	BeforeEach(func() {
		cfg = config.Config{
			Env: "staging",
			OTel: config.OTelConfig{
				ServiceName:    "minicrm",
				ServiceVersion: "1.4.0",
			},
			Redis: config.RedisConfig{ConsumerName: "worker-a"},
			Streams: config.StreamsConfig{
				Customer:  config.StreamConfig{Stream: "customer_ingestion_stream"},
				Order:     config.StreamConfig{Stream: "order_ingestion_stream"},
				Delivery:  config.StreamConfig{Stream: "delivery_simulation_stream"},
				LogUpdate: config.StreamConfig{Stream: "log_update_stream"},
			},
		}
	})

	lookup := func(res interface{ Set() *attribute.Set }, key string) attribute.Value {
		v, ok := res.Set().Value(attribute.Key(key))
		Expect(ok).To(BeTrue(), key)
		return v
	}

	It("names the worker and lists the streams it consumes", func() {
		res := otel.PipelineResource(cfg, config.ServiceTypeWorker)

		Expect(lookup(res, "service.namespace").AsString()).To(Equal("minicrm"))
		Expect(lookup(res, "service.name").AsString()).To(Equal("minicrm-worker"))
		Expect(lookup(res, "service.instance.id").AsString()).To(Equal("worker-a"))
		Expect(lookup(res, "deployment.environment").AsString()).To(Equal("staging"))
		Expect(lookup(res, "minicrm.pipeline.role").AsString()).To(Equal("worker"))
		Expect(lookup(res, "minicrm.pipeline.streams").AsStringSlice()).To(Equal([]string{
			"customer_ingestion_stream", "order_ingestion_stream", "delivery_simulation_stream", "log_update_stream",
		}))
	})

	It("leaves streams off the server resource", func() {
		res := otel.PipelineResource(cfg, config.ServiceTypeServer)

		Expect(lookup(res, "service.name").AsString()).To(Equal("minicrm-server"))
		_, ok := res.Set().Value("minicrm.pipeline.streams")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("ParseHeaders", func() {
	It("splits pairs and trims whitespace", func() {
		Expect(otel.ParseHeaders("authorization=Bearer abc, x-team = crm")).To(Equal(map[string]string{
			"authorization": "Bearer abc",
			"x-team":        "crm",
		}))
	})

	It("drops pairs without a key", func() {
		Expect(otel.ParseHeaders("=v,novalue,,k=")).To(Equal(map[string]string{"k": ""}))
	})
})

var _ = Describe("Setup", func() {
	It("installs nothing without an endpoint", func() {
		t, err := otel.Setup(context.Background(), config.Config{}, config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeNil())
	})
})
