// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cleanpress/go-possync/docstore"
)

// SyncStats aggregates record-level outcomes of one sync pass. Total counts
// the push set snapshot; Synced counts successful pushes plus pulled
// inserts; Skipped counts pulled records already present locally.
type SyncStats struct {
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// SyncResult is returned by every sync pass.
type SyncResult struct {
	Success      bool
	Stats        SyncStats
	Errors       []string
	Notification *NotificationBuilder
}

// pushRecord is one entry in the push-set snapshot taken at the start of a
// pass. Records created after the snapshot wait for the next pass.
type pushRecord struct {
	ID        string
	Delete    bool
	AmplifyID string         // remote id, set for pending deletes
	Input     map[string]any // create/update mutation input, nil for deletes
	mapErr    error          // non-nil when the local→wire mapping failed
}

// pullOutcome classifies what the delegate did with one downloaded record.
type pullOutcome int

const (
	pullInserted pullOutcome = iota
	pullUpdated
	pullSkipped
	pullConflict
)

// recordResult is the explicit per-record outcome the push phase folds into
// aggregate stats — partial failures accumulate, they never abort the pass.
type recordResult struct {
	id      string
	deleted bool
	updated bool // create fell back to update
	err     error
}

// entityDelegate supplies the entity-specific half of a sync pass: which
// records are pending, how they map to the wire, and how downloaded records
// reconcile with local state.
type entityDelegate interface {
	entityName() string
	collectPush(ctx context.Context) ([]pushRecord, error)
	markSynced(ctx context.Context, id, amplifyID string) error
	removeLocal(ctx context.Context, id string) error
	applyRemote(ctx context.Context, obj map[string]any) (pullOutcome, error)
}

// Syncer reconciles one entity collection with the remote backend in one
// bounded, resumable pass: push local pending changes, then pull the remote
// list. Re-running after a partial failure re-attempts only records still
// marked pending.
type Syncer struct {
	backend  Backend
	delegate entityDelegate
	logger   *slog.Logger

	// batchSize > 1 enables batched pushes: concurrent requests inside a
	// batch, sequential batches separated by batchDelay.
	batchSize  int
	batchDelay time.Duration
	pullLimit  int
}

func newSyncer(backend Backend, delegate entityDelegate, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		backend:   backend,
		delegate:  delegate,
		logger:    logger,
		batchSize: 1,
		pullLimit: pullPageLimit,
	}
}

// Name returns the entity type this syncer reconciles.
func (s *Syncer) Name() string { return s.delegate.entityName() }

// Sync performs one push-then-pull pass. Only a failure before any record
// has been attempted (store not initialized, push-set query failure) aborts
// the call; per-record failures are accumulated in the result.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	pushList, err := s.delegate.collectPush(ctx)
	if err != nil {
		if errors.Is(err, docstore.ErrStoreClosed) {
			return nil, ErrDatabaseNotInitialized
		}
		return nil, fmt.Errorf("failed to collect push set for %s: %w", s.Name(), err)
	}

	result := &SyncResult{Notification: NewNotificationBuilder()}
	result.Stats.Total = len(pushList)

	var results []recordResult
	if s.batchSize > 1 {
		results = s.pushBatched(ctx, pushList)
	} else {
		results = s.pushSequential(ctx, pushList)
	}
	for _, rr := range results {
		s.foldPushResult(result, rr)
	}

	// Pull must not start until push completes so freshly pushed records
	// are recognized as already-local and not duplicated.
	s.pull(ctx, result)

	result.Success = result.Stats.Failed == 0
	return result, nil
}

func (s *Syncer) pushSequential(ctx context.Context, pushList []pushRecord) []recordResult {
	results := make([]recordResult, 0, len(pushList))
	for i := range pushList {
		results = append(results, s.pushOne(ctx, pushList[i]))
	}
	return results
}

// pushBatched pushes records in fixed-size groups with concurrent requests
// inside a group and an inter-batch delay, a simple backpressure policy
// that avoids overwhelming the backend without a full rate limiter.
func (s *Syncer) pushBatched(ctx context.Context, pushList []pushRecord) []recordResult {
	results := make([]recordResult, len(pushList))
	for start := 0; start < len(pushList); start += s.batchSize {
		end := start + s.batchSize
		if end > len(pushList) {
			end = len(pushList)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = s.pushOne(ctx, pushList[i])
			}(i)
		}
		wg.Wait()

		if end < len(pushList) {
			if err := sleepWithContext(ctx, s.batchDelay); err != nil {
				for i := end; i < len(pushList); i++ {
					results[i] = recordResult{id: pushList[i].ID, err: err}
				}
				break
			}
		}
	}
	return results
}

// pushOne uploads a single pending record. Pending deletes issue the remote
// delete mutation and hard-remove the local copy on success. Pending
// creates attempt the create mutation first and fall back to update when
// the backend reports the record already exists from a prior
// partially-completed sync.
func (s *Syncer) pushOne(ctx context.Context, rec pushRecord) recordResult {
	name := s.Name()

	if rec.Delete {
		if err := s.backend.Delete(ctx, name, rec.AmplifyID); err != nil {
			// Keep the soft-deleted record pending; it stays eligible for
			// retry on the next pass.
			return recordResult{id: rec.ID, deleted: true,
				err: fmt.Errorf("remote delete failed for %s %s: %w", name, rec.ID, err)}
		}
		if err := s.delegate.removeLocal(ctx, rec.ID); err != nil {
			return recordResult{id: rec.ID, deleted: true,
				err: fmt.Errorf("failed to remove local %s %s after remote delete: %w", name, rec.ID, err)}
		}
		return recordResult{id: rec.ID, deleted: true}
	}

	if rec.mapErr != nil {
		return recordResult{id: rec.ID,
			err: fmt.Errorf("failed to map %s %s for upload: %w", name, rec.ID, rec.mapErr)}
	}

	obj, err := s.backend.Create(ctx, name, rec.Input)
	updated := false
	if IsConditionalCheckFailed(err) {
		s.logger.Debug("create reported already-exists, retrying as update",
			"entity", name, "id", rec.ID)
		obj, err = s.backend.Update(ctx, name, rec.Input)
		updated = true
	}
	if err != nil {
		return recordResult{id: rec.ID,
			err: fmt.Errorf("push failed for %s %s: %w", name, rec.ID, err)}
	}

	amplifyID := rec.ID
	if obj != nil {
		if remoteID := getString(obj, "id"); remoteID != "" {
			amplifyID = remoteID
		}
	}
	if err := s.delegate.markSynced(ctx, rec.ID, amplifyID); err != nil {
		return recordResult{id: rec.ID,
			err: fmt.Errorf("failed to mark %s %s synced: %w", name, rec.ID, err)}
	}
	return recordResult{id: rec.ID, updated: updated}
}

func (s *Syncer) foldPushResult(result *SyncResult, rr recordResult) {
	if rr.err != nil {
		result.Stats.Failed++
		result.Errors = append(result.Errors, rr.err.Error())
		s.logger.Warn("record push failed", "entity", s.Name(), "id", rr.id, "error", rr.err)
		return
	}
	result.Stats.Synced++
	switch {
	case rr.deleted:
		result.Notification.Record(s.Name(), ToCloud, ActionDeleted)
	case rr.updated:
		result.Notification.Record(s.Name(), ToCloud, ActionUpdated)
	default:
		result.Notification.Record(s.Name(), ToCloud, ActionAdded)
	}
}

// pull lists remote records and reconciles each against local state.
// Per-record errors do not abort the remaining list.
func (s *Syncer) pull(ctx context.Context, result *SyncResult) {
	objs, err := s.backend.List(ctx, s.Name(), s.pullLimit)
	if err != nil {
		result.Stats.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("Download failed: %v", err))
		return
	}

	for _, obj := range objs {
		outcome, err := s.delegate.applyRemote(ctx, obj)
		if err != nil {
			result.Stats.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Download failed: %v", err))
			continue
		}
		switch outcome {
		case pullInserted:
			result.Stats.Synced++
			result.Notification.Record(s.Name(), FromCloud, ActionAdded)
		case pullUpdated:
			result.Notification.Record(s.Name(), FromCloud, ActionUpdated)
		case pullSkipped, pullConflict:
			result.Stats.Skipped++
		}
	}
}

// repoDelegate implements entityDelegate on top of a typed repository and a
// pure mapper pair. The optional hooks customize the pull phase: onExisting
// decides what to do with a remote record already present locally (default:
// leave it), onAbsent may intercept a remote record with no local
// counterpart before the default insert (the category duplicate check).
type repoDelegate[T any, PT interface {
	*T
	Syncable
}] struct {
	name     string
	repo     *Repo[T, PT]
	toWire   func(PT) (map[string]any, error)
	fromWire func(map[string]any) (PT, error)

	onExisting func(ctx context.Context, local PT, obj map[string]any) (pullOutcome, error)
	onAbsent   func(ctx context.Context, obj map[string]any) (handled bool, outcome pullOutcome, err error)
}

func (d *repoDelegate[T, PT]) entityName() string { return d.name }

func (d *repoDelegate[T, PT]) collectPush(ctx context.Context) ([]pushRecord, error) {
	pending, err := d.repo.PendingPush(ctx)
	if err != nil {
		return nil, err
	}
	deletes, err := d.repo.PendingDeletes(ctx)
	if err != nil {
		return nil, err
	}

	recs := make([]pushRecord, 0, len(pending)+len(deletes))
	for _, e := range pending {
		input, mapErr := d.toWire(e)
		recs = append(recs, pushRecord{ID: e.EntityID(), Input: input, mapErr: mapErr})
	}
	for _, e := range deletes {
		recs = append(recs, pushRecord{
			ID:        e.EntityID(),
			Delete:    true,
			AmplifyID: e.Envelope().AmplifyID,
		})
	}
	return recs, nil
}

func (d *repoDelegate[T, PT]) markSynced(ctx context.Context, id, amplifyID string) error {
	return d.repo.MarkSynced(ctx, id, amplifyID)
}

func (d *repoDelegate[T, PT]) removeLocal(ctx context.Context, id string) error {
	return d.repo.Remove(ctx, id)
}

func (d *repoDelegate[T, PT]) applyRemote(ctx context.Context, obj map[string]any) (pullOutcome, error) {
	id := getString(obj, "id")
	if id == "" {
		return pullSkipped, fmt.Errorf("remote %s record missing id", d.name)
	}

	local, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return pullSkipped, err
	}

	if local == nil {
		if d.onAbsent != nil {
			handled, outcome, err := d.onAbsent(ctx, obj)
			if err != nil || handled {
				return outcome, err
			}
		}
		e, err := d.fromWire(obj)
		if err != nil {
			return pullSkipped, err
		}
		if err := d.repo.Insert(ctx, e); err != nil {
			return pullSkipped, err
		}
		return pullInserted, nil
	}

	if d.onExisting != nil {
		return d.onExisting(ctx, local, obj)
	}
	return pullSkipped, nil
}

// sleepWithContext waits for d unless the context is cancelled first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
