// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"log/slog"
)

// SyncService is one entity's sync pass, as seen by the orchestrator.
type SyncService interface {
	Name() string
	Sync(ctx context.Context) (*SyncResult, error)
}

// EntitySyncResult is one service's outcome within a full sync run. Err is
// set only when the service aborted before attempting records; otherwise
// record-level failures are inside Result.
type EntitySyncResult struct {
	Entity string
	Result *SyncResult
	Err    error
}

// OverallResult aggregates a full dependency-ordered sync run.
type OverallResult struct {
	Success      bool
	Results      []EntitySyncResult
	Notification *NotificationBuilder
}

// Stats sums the per-entity stats.
func (r *OverallResult) Stats() SyncStats {
	var total SyncStats
	for _, er := range r.Results {
		if er.Result == nil {
			continue
		}
		total.Total += er.Result.Stats.Total
		total.Synced += er.Result.Stats.Synced
		total.Failed += er.Result.Stats.Failed
		total.Skipped += er.Result.Stats.Skipped
	}
	return total
}

// Summary renders the consolidated user-facing notification.
func (r *OverallResult) Summary() string {
	return r.Notification.Summary()
}

// Orchestrator runs all entity sync services sequentially in dependency
// order: businesses before the categories that belong to them, categories
// before the products that reference them, customers before the orders that
// reference them.
type Orchestrator struct {
	services []SyncService
	logger   *slog.Logger
}

// NewOrchestrator wires the five services in their fixed execution order.
func NewOrchestrator(
	business *BusinessSync,
	category *CategorySync,
	product *ProductSync,
	customer *CustomerSync,
	order *OrderSync,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		services: []SyncService{business, category, product, customer, order},
		logger:   logger,
	}
}

// SyncAll runs every service to completion in order. One entity failing
// does not stop the entities after it; Success is true only when every
// service succeeded with zero failed records.
func (o *Orchestrator) SyncAll(ctx context.Context) *OverallResult {
	overall := &OverallResult{
		Success:      true,
		Notification: NewNotificationBuilder(),
	}

	for _, svc := range o.services {
		o.logger.Info("syncing entity", "entity", svc.Name())
		result, err := svc.Sync(ctx)
		er := EntitySyncResult{Entity: svc.Name(), Result: result, Err: err}
		overall.Results = append(overall.Results, er)

		switch {
		case err != nil:
			overall.Success = false
			o.logger.Error("entity sync aborted", "entity", svc.Name(), "error", err)
		case !result.Success:
			overall.Success = false
			o.logger.Warn("entity sync finished with failures",
				"entity", svc.Name(), "failed", result.Stats.Failed, "errors", len(result.Errors))
			overall.Notification.Merge(result.Notification)
		default:
			o.logger.Info("entity sync complete", "entity", svc.Name(),
				"total", result.Stats.Total, "synced", result.Stats.Synced,
				"skipped", result.Stats.Skipped)
			overall.Notification.Merge(result.Notification)
		}
	}
	return overall
}
