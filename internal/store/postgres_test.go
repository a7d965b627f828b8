package store_test

import (
	"context"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"minicrm.app/pipeline/common/id"
	"minicrm.app/pipeline/core/db"
	"minicrm.app/pipeline/core/db/sqlc"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/store"
)

// These tests run against a real database when TEST_DATABASE_URL is set.
var _ = Describe("Postgres stores", Ordered, func() {
	var (
		database *db.DB
		stores   *store.Stores
		ctx      context.Context
		owner    string
	)

	BeforeAll(func() {
		dsn := os.Getenv("TEST_DATABASE_URL")
		if dsn == "" {
			Skip("TEST_DATABASE_URL not set")
		}
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		var err error
		database, err = db.New(ctx, db.Config{DSN: dsn})
		Expect(err).NotTo(HaveOccurred())
		Expect(database.Migrate(ctx)).To(Succeed())
		DeferCleanup(database.Close)

		stores = store.NewStores(database.Queries())
	})

	BeforeEach(func() {
		owner = "u-" + id.Format(id.New())
	})

	It("keeps one row per owner and email with the latest fields", func() {
		a, a2, phone := "A", "A2", "123"
		key := model.CustomerKey{OwnerID: owner, Email: "a@x.com"}

		_, err := stores.Customers().Upsert(ctx, []model.CustomerUpsert{{ID: id.New(), OwnerID: owner, Email: key.Email, Name: &a}})
		Expect(err).NotTo(HaveOccurred())
		_, err = stores.Customers().Upsert(ctx, []model.CustomerUpsert{{ID: id.New(), OwnerID: owner, Email: key.Email, Name: &a2, Phone: &phone}})
		Expect(err).NotTo(HaveOccurred())

		c, err := stores.Customers().GetByKey(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(*c.Name).To(Equal("A2"))
		Expect(*c.Phone).To(Equal("123"))

		resolved, err := stores.Customers().Resolve(ctx, []model.CustomerKey{key, {OwnerID: owner, Email: "missing@x.com"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved).To(HaveLen(1))
		Expect(resolved[key]).To(Equal(c.ID))
	})

	It("inserts each source item once", func() {
		key := model.CustomerKey{OwnerID: owner, Email: "o@x.com"}
		_, err := stores.Customers().Upsert(ctx, []model.CustomerUpsert{{ID: id.New(), OwnerID: owner, Email: key.Email}})
		Expect(err).NotTo(HaveOccurred())
		resolved, err := stores.Customers().Resolve(ctx, []model.CustomerKey{key})
		Expect(err).NotTo(HaveOccurred())

		order := model.Order{
			ID: id.New(), OwnerID: owner, CustomerID: resolved[key], Email: key.Email,
			Amount: decimal.RequireFromString("12.25"), OrderDate: time.Now().UTC(),
			SourceItemID: id.Format(id.New()) + "-0",
		}
		inserted, err := stores.Orders().InsertMany(ctx, []model.Order{order})
		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(HaveLen(1))
		Expect(inserted[0].Amount.Equal(order.Amount)).To(BeTrue())

		order.ID = id.New()
		inserted, err = stores.Orders().InsertMany(ctx, []model.Order{order})
		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(BeEmpty())
	})

	It("completes a campaign exactly once under racing batches", func() {
		customerIDs := make([]int64, 0, 3)
		upserts := []model.CustomerUpsert{}
		for _, email := range []string{"r1@x.com", "r2@x.com", "r3@x.com"} {
			upserts = append(upserts, model.CustomerUpsert{ID: id.New(), OwnerID: owner, Email: email})
		}
		_, err := stores.Customers().Upsert(ctx, upserts)
		Expect(err).NotTo(HaveOccurred())
		for _, u := range upserts {
			customerIDs = append(customerIDs, u.ID)
		}

		campaign := &model.Campaign{ID: id.New(), OwnerID: owner, Name: "race", AudienceSize: 3}
		Expect(stores.Campaigns().Create(ctx, campaign)).To(Succeed())

		logs := []model.CommunicationLog{}
		for _, cid := range customerIDs {
			logs = append(logs, model.CommunicationLog{ID: id.New(), CampaignID: campaign.ID, CustomerID: cid, Message: "hi", VendorReference: "vr"})
		}
		n, err := stores.CommunicationLogs().CreatePending(ctx, logs)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(3)))

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			completed []int64
		)
		for i := range customerIDs {
			wg.Add(1)
			go func(cid int64, status model.DeliveryStatus) {
				defer GinkgoRecover()
				defer wg.Done()
				err := database.WithTx(ctx, func(q *sqlc.Queries) error {
					tx := store.NewStores(q)
					applied, err := tx.CommunicationLogs().ApplyStatuses(ctx, []model.StatusChange{{CampaignID: campaign.ID, CustomerID: cid, Status: status}})
					if err != nil {
						return err
					}
					delta := model.CampaignDelta{CampaignID: campaign.ID}
					for _, a := range applied {
						if a.Status == model.DeliveryStatusSent {
							delta.Sent++
						} else {
							delta.Failed++
						}
					}
					if _, err := tx.Campaigns().IncrementDeliveryStats(ctx, []model.CampaignDelta{delta}); err != nil {
						return err
					}
					ids, err := tx.Campaigns().Complete(ctx, []int64{campaign.ID})
					if err != nil {
						return err
					}
					mu.Lock()
					completed = append(completed, ids...)
					mu.Unlock()
					return nil
				})
				Expect(err).NotTo(HaveOccurred())
			}(customerIDs[i], []model.DeliveryStatus{model.DeliveryStatusSent, model.DeliveryStatusSent, model.DeliveryStatusFailed}[i])
		}
		wg.Wait()

		got, err := stores.Campaigns().GetByID(ctx, campaign.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(model.CampaignStatusCompleted))
		Expect(got.DeliveryStats).To(Equal(model.DeliveryStats{Sent: 2, Failed: 1}))
		Expect(completed).To(ConsistOf(campaign.ID))

		applied, err := stores.CommunicationLogs().ApplyStatuses(ctx, []model.StatusChange{{CampaignID: campaign.ID, CustomerID: customerIDs[0], Status: model.DeliveryStatusFailed}})
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(BeEmpty())
	})
})
