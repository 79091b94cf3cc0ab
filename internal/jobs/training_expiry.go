package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tfsgroup/siteportal/internal/config"
	"github.com/tfsgroup/siteportal/internal/db"
	"github.com/tfsgroup/siteportal/internal/notify"
)

// StartTrainingExpiryJob periodically flags training records expiring
// within the configured window and raises one admin notification per
// record. Each record is notified at most once.
func StartTrainingExpiryJob(ctx context.Context, cfg config.Config, store *db.Store, notifier *notify.Notifier) {
	if !cfg.TrainingExpiryJobEnabled {
		return
	}
	interval := cfg.TrainingExpiryJobInterval
	if interval <= 0 {
		interval = time.Hour
	}
	window := cfg.TrainingExpiryWindow
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				if err := runTrainingExpiryTick(tickCtx, store, notifier, window); err != nil {
					log.Printf("training expiry job error: %v", err)
				}
				cancel()
			}
		}
	}()
}

func runTrainingExpiryTick(ctx context.Context, store *db.Store, notifier *notify.Notifier, window time.Duration) error {
	deadline := time.Now().UTC().Add(window)
	records, err := store.ListExpiringTraining(ctx, deadline)
	if err != nil {
		return err
	}
	for _, record := range records {
		profile, err := store.GetProfileByUserID(ctx, record.UserID)
		if err != nil {
			return err
		}
		message := fmt.Sprintf("%s for %s expires on %s", record.Title, profile.FullName, record.ExpiresAt.Format("2 Jan 2006"))
		if err := notifier.NotifyAdmins(ctx, "training_expiry", "Training expiring soon", &message, &record.ID); err != nil {
			return err
		}
		if err := store.MarkTrainingExpiryNotified(ctx, record.ID); err != nil {
			return err
		}
	}
	if len(records) > 0 {
		log.Printf("training expiry job flagged %d records", len(records))
	}
	return nil
}
