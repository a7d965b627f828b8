package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
)

var _ = Describe("LogAggregator", func() {
	const campaignID int64 = 1

	var (
		ctx     context.Context
		clock   = fakeClock()
		stream  *fakeStream
		db      *memDB
		metrics *Metrics
		agg     *LogAggregator
	)

	newAggregator := func(s *fakeStream, maxSize int) *LogAggregator {
		return NewLogAggregator(s, db, testConfig("log", s.name),
			AggregatorConfig{MaxBatchSize: maxSize, MaxWait: 5 * time.Second},
			WithClock(clock), WithMetrics(metrics))
	}

	BeforeEach(func() {
		ctx = context.Background()
		clock = fakeClock()
		stream = newFakeStream("log_update_stream")
		db = newMemDB()
		db.seedCampaign(campaignID, 11, 12, 13)
		metrics = NewMetrics(prometheus.NewRegistry())
		agg = newAggregator(stream, 2)
	})

	It("counts outcomes per flush and completes the campaign once every recipient is covered", func() {
		stream.add(
			statusFields(campaignID, 11, model.DeliveryStatusSent),
			statusFields(campaignID, 12, model.DeliveryStatusSent),
		)
		Expect(agg.cycle(ctx)).To(Succeed())

		c := db.campaign(campaignID)
		Expect(c.Status).To(Equal(model.CampaignStatusRunning))
		Expect(c.DeliveryStats).To(Equal(model.DeliveryStats{Sent: 2, Failed: 0}))
		Expect(stream.pendingIDs()).To(BeEmpty())

		stream.add(statusFields(campaignID, 13, model.DeliveryStatusFailed))
		Expect(agg.cycle(ctx)).To(Succeed())
		Expect(db.campaign(campaignID).DeliveryStats.Failed).To(Equal(int32(0)))
		Expect(stream.pendingIDs()).To(HaveLen(1))

		clock.Advance(5 * time.Second)
		Expect(agg.cycle(ctx)).To(Succeed())

		c = db.campaign(campaignID)
		Expect(c.Status).To(Equal(model.CampaignStatusCompleted))
		Expect(c.DeliveryStats).To(Equal(model.DeliveryStats{Sent: 2, Failed: 1}))
		Expect(db.log(campaignID, 13).DeliveryStatus).To(Equal(model.DeliveryStatusFailed))
		Expect(testutil.ToFloat64(metrics.campaignsCompleted)).To(Equal(1.0))
		Expect(stream.pendingIDs()).To(BeEmpty())
	})

	It("ignores redelivered outcomes for logs that are already terminal", func() {
		stream.add(
			statusFields(campaignID, 11, model.DeliveryStatusSent),
			statusFields(campaignID, 12, model.DeliveryStatusSent),
		)
		Expect(agg.cycle(ctx)).To(Succeed())

		stream.add(
			statusFields(campaignID, 11, model.DeliveryStatusFailed),
			statusFields(campaignID, 12, model.DeliveryStatusSent),
		)
		Expect(agg.cycle(ctx)).To(Succeed())

		Expect(db.campaign(campaignID).DeliveryStats).To(Equal(model.DeliveryStats{Sent: 2}))
		Expect(db.log(campaignID, 11).DeliveryStatus).To(Equal(model.DeliveryStatusSent))
		Expect(stream.pendingIDs()).To(BeEmpty())
	})

	It("completes a campaign exactly once however often its last outcome is delivered", func() {
		agg = newAggregator(stream, 3)
		stream.add(
			statusFields(campaignID, 11, model.DeliveryStatusSent),
			statusFields(campaignID, 12, model.DeliveryStatusSent),
			statusFields(campaignID, 13, model.DeliveryStatusSent),
		)
		Expect(agg.cycle(ctx)).To(Succeed())
		Expect(db.campaign(campaignID).Status).To(Equal(model.CampaignStatusCompleted))

		stream.add(
			statusFields(campaignID, 13, model.DeliveryStatusSent),
			statusFields(campaignID, 13, model.DeliveryStatusSent),
			statusFields(campaignID, 12, model.DeliveryStatusSent),
		)
		Expect(agg.cycle(ctx)).To(Succeed())

		Expect(db.campaign(campaignID).DeliveryStats.Total()).To(Equal(int32(3)))
		Expect(testutil.ToFloat64(metrics.campaignsCompleted)).To(Equal(1.0))
		Expect(db.callCount("campaigns.complete")).To(Equal(1))
	})

	It("keeps the batch and acknowledges nothing when the flush transaction fails", func() {
		ids := stream.add(
			statusFields(campaignID, 11, model.DeliveryStatusSent),
			statusFields(campaignID, 12, model.DeliveryStatusFailed),
		)
		db.failOnce("campaigns.increment", errors.New("connection reset"))

		Expect(agg.cycle(ctx)).To(HaveOccurred())
		Expect(agg.Batcher().Len()).To(Equal(2))
		Expect(agg.Batcher().State()).To(Equal(BatchCollecting))
		Expect(stream.pendingIDs()).To(Equal(ids))
		Expect(db.log(campaignID, 11).DeliveryStatus).To(Equal(model.DeliveryStatusPending))
		Expect(db.campaign(campaignID).DeliveryStats.Total()).To(Equal(int32(0)))

		reads := stream.reads
		Expect(agg.cycle(ctx)).To(Succeed())
		Expect(stream.reads).To(Equal(reads), "a held batch is retried before reading more")
		Expect(db.campaign(campaignID).DeliveryStats).To(Equal(model.DeliveryStats{Sent: 1, Failed: 1}))
		Expect(agg.Batcher().Len()).To(Equal(0))
		Expect(stream.pendingIDs()).To(BeEmpty())
	})

	It("replays its own pending updates into the batch before reading new ones", func() {
		ids := stream.add(
			statusFields(campaignID, 11, model.DeliveryStatusSent),
			statusFields(campaignID, 12, model.DeliveryStatusFailed),
			statusFields(campaignID, 13, model.DeliveryStatusSent),
		)
		_, err := stream.Read(ctx, 10, 0)
		Expect(err).NotTo(HaveOccurred())
		reads := stream.reads

		Expect(agg.cycle(ctx)).To(Succeed())
		Expect(stream.reads).To(Equal(reads))
		Expect(db.campaign(campaignID).DeliveryStats).To(Equal(model.DeliveryStats{Sent: 1, Failed: 1}))
		Expect(stream.pendingIDs()).To(Equal(ids[2:]))

		Expect(agg.cycle(ctx)).To(Succeed())
		Expect(stream.reads).To(Equal(reads))
		Expect(agg.Batcher().Len()).To(Equal(1))

		clock.Advance(5 * time.Second)
		Expect(agg.cycle(ctx)).To(Succeed())
		Expect(db.campaign(campaignID).Status).To(Equal(model.CampaignStatusCompleted))
		Expect(stream.pendingIDs()).To(BeEmpty())

		Expect(agg.cycle(ctx)).To(Succeed())
		Expect(stream.reads).To(Equal(reads + 1))
	})

	It("dead-letters malformed updates without holding them in the batch", func() {
		ids := stream.add(codec.Fields{codec.FieldCampaignID: "1", codec.FieldCustomerID: "11", codec.FieldDeliveryStatus: "pending"})
		Expect(agg.cycle(ctx)).To(Succeed())

		Expect(stream.deadLetters()).To(HaveLen(1))
		Expect(stream.ackedIDs()).To(Equal(ids))
		Expect(agg.Batcher().Len()).To(Equal(0))
	})

	It("flushes what it holds when it shuts down", func() {
		agg = newAggregator(stream, 10)
		ids := stream.add(statusFields(campaignID, 11, model.DeliveryStatusSent))

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = agg.Run(runCtx)
		}()

		Eventually(stream.pendingIDs).Should(Equal(ids))
		cancel()
		Eventually(done).Should(BeClosed())

		Expect(stream.pendingIDs()).To(BeEmpty())
		Expect(db.campaign(campaignID).DeliveryStats.Sent).To(Equal(int32(1)))
	})

	It("completes a campaign once when two aggregators flush its last outcomes together", func() {
		db.seedCampaign(2, 21, 22)
		s1 := newFakeStream("log_update_stream")
		s2 := newFakeStream("log_update_stream")
		a1 := newAggregator(s1, 1)
		a2 := newAggregator(s2, 1)
		s1.add(statusFields(2, 21, model.DeliveryStatusSent))
		s2.add(statusFields(2, 22, model.DeliveryStatusFailed))

		var wg sync.WaitGroup
		for _, a := range []*LogAggregator{a1, a2} {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(a.cycle(ctx)).To(Succeed())
			}()
		}
		wg.Wait()

		c := db.campaign(2)
		Expect(c.Status).To(Equal(model.CampaignStatusCompleted))
		Expect(c.DeliveryStats).To(Equal(model.DeliveryStats{Sent: 1, Failed: 1}))
		Expect(testutil.ToFloat64(metrics.campaignsCompleted)).To(Equal(1.0))
	})

	Describe("DedupeStatusChanges", func() {
		It("keeps the last change per log in first-seen order", func() {
			entries := []Decoded[codec.StatusUpdate]{
				{Value: codec.StatusUpdate{CampaignID: 1, CustomerID: 1, Status: model.DeliveryStatusSent}},
				{Value: codec.StatusUpdate{CampaignID: 1, CustomerID: 2, Status: model.DeliveryStatusSent}},
				{Value: codec.StatusUpdate{CampaignID: 1, CustomerID: 1, Status: model.DeliveryStatusFailed}},
			}
			changes := DedupeStatusChanges(entries)
			Expect(changes).To(HaveLen(2))
			Expect(changes[0].CustomerID).To(Equal(int64(1)))
			Expect(changes[0].Status).To(Equal(model.DeliveryStatusFailed))
		})
	})

	Describe("TallyDeliveries", func() {
		It("counts sent and failed per campaign", func() {
			deltas := TallyDeliveries([]model.StatusChange{
				{CampaignID: 1, Status: model.DeliveryStatusSent},
				{CampaignID: 2, Status: model.DeliveryStatusFailed},
				{CampaignID: 1, Status: model.DeliveryStatusFailed},
				{CampaignID: 1, Status: model.DeliveryStatusSent},
			})
			Expect(deltas).To(Equal([]model.CampaignDelta{
				{CampaignID: 1, Sent: 2, Failed: 1},
				{CampaignID: 2, Failed: 1},
			}))
		})
	})
})
