// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cleanpress/go-possync/docstore"
)

// ConflictType distinguishes the two category conflict shapes.
type ConflictType string

const (
	// ConflictVersion: same id edited independently on both sides.
	ConflictVersion ConflictType = "version"
	// ConflictDuplicate: different ids, same name, local copy never synced.
	ConflictDuplicate ConflictType = "duplicate"
)

// Conflict pairs a local category with the remote copy it collides with.
type Conflict struct {
	Type   ConflictType
	Local  *Category
	Remote *Category
}

// Resolution selects which side of a conflict survives.
type Resolution string

const (
	KeepLocal Resolution = "keep-local"
	KeepCloud Resolution = "keep-cloud"
)

// ConflictResolution is one user decision, keyed by the local category id.
type ConflictResolution struct {
	CategoryID string
	Resolution Resolution
}

// CategorySync reconciles categories and is the only service that detects
// conflicts instead of auto-merging. Detected conflicts accumulate across
// passes until ResolveConflicts is called with user decisions; conflicted
// records are left untouched in the meantime.
type CategorySync struct {
	*Syncer
	repo   *CategoryRepo
	logger *slog.Logger

	mu        sync.Mutex
	conflicts []Conflict
}

// NewCategorySync creates the category sync service.
func NewCategorySync(repo *CategoryRepo, backend Backend, logger *slog.Logger) *CategorySync {
	if logger == nil {
		logger = slog.Default()
	}
	cs := &CategorySync{repo: repo, logger: logger}
	d := &repoDelegate[Category, *Category]{
		name:       EntityCategory,
		repo:       repo,
		toWire:     categoryToWire,
		fromWire:   categoryFromWire,
		onExisting: cs.onExisting,
		onAbsent:   cs.onAbsent,
	}
	cs.Syncer = newSyncer(backend, d, logger)
	return cs
}

// onExisting handles a downloaded category whose id is already local.
// Both sides edited (both versions past the initial 1) with diverging
// versions is a version conflict. A strictly newer remote copy replaces a
// local copy with no unpushed edits. Everything else is left alone.
func (cs *CategorySync) onExisting(ctx context.Context, local *Category, obj map[string]any) (pullOutcome, error) {
	remote, err := categoryFromWire(obj)
	if err != nil {
		return pullSkipped, err
	}

	if local.Version > 1 && remote.Version > 1 && local.Version != remote.Version {
		cs.addConflict(Conflict{Type: ConflictVersion, Local: local, Remote: remote})
		cs.logger.Info("category version conflict detected",
			"id", local.ID, "localVersion", local.Version, "remoteVersion", remote.Version)
		return pullConflict, nil
	}

	if remote.Version > local.Version && !local.PendingPush() {
		if err := cs.repo.Save(ctx, remote); err != nil {
			return pullSkipped, err
		}
		return pullUpdated, nil
	}
	return pullSkipped, nil
}

// onAbsent intercepts a downloaded category with an unknown id before the
// default insert to check for a name collision. A never-synced local with
// the same name is a duplicate conflict needing a user decision. A synced
// local with the same name means the collision was already reconciled under
// another id, so the download is skipped rather than creating a twin.
func (cs *CategorySync) onAbsent(ctx context.Context, obj map[string]any) (bool, pullOutcome, error) {
	name := getString(obj, "name")
	if name == "" {
		return false, pullSkipped, nil
	}

	locals, err := cs.repo.Find(ctx, docstore.Filter{
		"name":      name,
		"isDeleted": docstore.Ne(true),
	})
	if err != nil {
		return true, pullSkipped, err
	}

	for _, local := range locals {
		if local.IsLocalOnly {
			remote, err := categoryFromWire(obj)
			if err != nil {
				return true, pullSkipped, err
			}
			cs.addConflict(Conflict{Type: ConflictDuplicate, Local: local, Remote: remote})
			cs.logger.Info("category duplicate conflict detected",
				"name", name, "localId", local.ID, "remoteId", remote.ID)
			return true, pullConflict, nil
		}
		// Same name already synced under a different id.
		return true, pullSkipped, nil
	}
	return false, pullSkipped, nil
}

func (cs *CategorySync) addConflict(c Conflict) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, existing := range cs.conflicts {
		if existing.Type == c.Type &&
			existing.Local.ID == c.Local.ID &&
			existing.Remote.ID == c.Remote.ID {
			return
		}
	}
	cs.conflicts = append(cs.conflicts, c)
}

// Conflicts returns the unresolved conflicts detected so far.
func (cs *CategorySync) Conflicts() []Conflict {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]Conflict, len(cs.conflicts))
	copy(out, cs.conflicts)
	return out
}

// ResolveConflicts applies user decisions. KeepLocal leaves the local copy
// pending push so the next pass uploads it. KeepCloud discards the local
// copy and installs the remote one. Every matched conflict is cleared from
// the pending list whether or not its resolution write succeeded; a failed
// write is logged and the records reconverge on a later pass.
func (cs *CategorySync) ResolveConflicts(ctx context.Context, resolutions []ConflictResolution) error {
	cs.mu.Lock()
	conflicts := cs.conflicts
	cs.mu.Unlock()

	resolved := make(map[int]bool)
	for _, r := range resolutions {
		for i, c := range conflicts {
			if resolved[i] || c.Local.ID != r.CategoryID {
				continue
			}
			resolved[i] = true
			if r.Resolution != KeepCloud {
				if err := cs.keepLocal(ctx, c); err != nil {
					cs.logger.Warn("conflict resolution write failed",
						"categoryId", r.CategoryID, "type", c.Type, "error", err)
				}
				break
			}
			if err := cs.keepCloud(ctx, c); err != nil {
				cs.logger.Warn("conflict resolution write failed",
					"categoryId", r.CategoryID, "type", c.Type, "error", err)
			}
			break
		}
	}

	cs.mu.Lock()
	remaining := cs.conflicts[:0]
	for i, c := range cs.conflicts {
		if !resolved[i] {
			remaining = append(remaining, c)
		}
	}
	cs.conflicts = remaining
	cs.mu.Unlock()
	return nil
}

// keepLocal re-marks a synced local copy pending push so the next pass
// uploads it over the remote edit. A duplicate conflict's local copy is
// already local-only and needs no write.
func (cs *CategorySync) keepLocal(ctx context.Context, c Conflict) error {
	if c.Local.PendingPush() {
		return nil
	}
	return cs.repo.SetFields(ctx, c.Local.ID, map[string]any{"isLocalOnly": true})
}

func (cs *CategorySync) keepCloud(ctx context.Context, c Conflict) error {
	if c.Local.ID != c.Remote.ID {
		if err := cs.repo.Remove(ctx, c.Local.ID); err != nil {
			return err
		}
		return cs.repo.Insert(ctx, c.Remote)
	}
	return cs.repo.Save(ctx, c.Remote)
}
