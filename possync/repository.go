// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cleanpress/go-possync/docstore"
)

// Repo is a typed query/update facade over one document store collection.
// All sync-state transitions (soft vs hard delete, pending queries, the
// mark-synced flip) live here so the sync services never touch raw
// documents.
type Repo[T any, PT interface {
	*T
	Syncable
}] struct {
	col    *docstore.Collection
	logger *slog.Logger
}

func newRepo[T any, PT interface {
	*T
	Syncable
}](store *docstore.Store, collection string, logger *slog.Logger) (*Repo[T, PT], error) {
	if store == nil {
		return nil, ErrDatabaseNotInitialized
	}
	col, err := store.Collection(collection)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo[T, PT]{col: col, logger: logger}, nil
}

// Typed repositories, one per entity collection.
type (
	CustomerRepo = Repo[Customer, *Customer]
	EmployeeRepo = Repo[Employee, *Employee]
	CategoryRepo = Repo[Category, *Category]
	ProductRepo  = Repo[Product, *Product]
	BusinessRepo = Repo[Business, *Business]
	OrderRepo    = Repo[Order, *Order]
)

func NewCustomerRepo(store *docstore.Store, logger *slog.Logger) (*CustomerRepo, error) {
	return newRepo[Customer, *Customer](store, CollectionCustomer, logger)
}

func NewEmployeeRepo(store *docstore.Store, logger *slog.Logger) (*EmployeeRepo, error) {
	return newRepo[Employee, *Employee](store, CollectionEmployee, logger)
}

func NewCategoryRepo(store *docstore.Store, logger *slog.Logger) (*CategoryRepo, error) {
	return newRepo[Category, *Category](store, CollectionCategory, logger)
}

func NewProductRepo(store *docstore.Store, logger *slog.Logger) (*ProductRepo, error) {
	return newRepo[Product, *Product](store, CollectionProduct, logger)
}

func NewBusinessRepo(store *docstore.Store, logger *slog.Logger) (*BusinessRepo, error) {
	return newRepo[Business, *Business](store, CollectionBusiness, logger)
}

func NewOrderRepo(store *docstore.Store, logger *slog.Logger) (*OrderRepo, error) {
	return newRepo[Order, *Order](store, CollectionOrder, logger)
}

// Collection exposes the underlying collection (for change feed access).
func (r *Repo[T, PT]) Collection() *docstore.Collection { return r.col }

// Subscribe returns the collection's change feed.
func (r *Repo[T, PT]) Subscribe(buffer int) (<-chan docstore.ChangeEvent, func()) {
	return r.col.Subscribe(buffer)
}

// FindByID returns the entity with the given id, or nil when absent.
func (r *Repo[T, PT]) FindByID(ctx context.Context, id string) (PT, error) {
	doc, err := r.col.FindOne(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeEntity[T, PT](doc)
}

// All returns every entity in the collection.
func (r *Repo[T, PT]) All(ctx context.Context) ([]PT, error) {
	return r.Find(ctx, nil)
}

// Find returns entities matching the filter.
func (r *Repo[T, PT]) Find(ctx context.Context, filter docstore.Filter, sorts ...docstore.Sort) ([]PT, error) {
	docs, err := r.col.Find(ctx, filter, sorts...)
	if err != nil {
		return nil, err
	}
	out := make([]PT, 0, len(docs))
	for _, doc := range docs {
		e, err := decodeEntity[T, PT](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Insert stores a new local record. Missing id and timestamps are stamped;
// a record without an AmplifyID starts as local-only (never pushed).
func (r *Repo[T, PT]) Insert(ctx context.Context, e PT) error {
	env := e.Envelope()
	now := time.Now().UTC()
	if env.ID == "" {
		env.ID = uuid.New().String()
	}
	if env.CreatedAt.IsZero() {
		env.CreatedAt = now
	}
	if env.UpdatedAt.IsZero() {
		env.UpdatedAt = now
	}
	if env.AmplifyID == "" {
		env.IsLocalOnly = true
	}

	doc, err := encodeEntity(e)
	if err != nil {
		return err
	}
	return r.col.Insert(ctx, doc)
}

// Save replaces the stored record with the given entity and bumps updatedAt.
func (r *Repo[T, PT]) Save(ctx context.Context, e PT) error {
	env := e.Envelope()
	env.UpdatedAt = time.Now().UTC()
	doc, err := encodeEntity(e)
	if err != nil {
		return err
	}
	return r.col.Replace(ctx, env.ID, doc)
}

// SetFields applies a partial update and bumps updatedAt.
func (r *Repo[T, PT]) SetFields(ctx context.Context, id string, set map[string]any) error {
	merged := make(map[string]any, len(set)+1)
	for k, v := range set {
		merged[k] = v
	}
	merged["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	return r.col.Update(ctx, id, merged)
}

// Delete is the soft/hard decision point. A record that has never been
// synced is hard-removed immediately — there is nothing to reconcile
// remotely. A synced record is soft-deleted and becomes a pending remote
// deletion for the next sync pass.
func (r *Repo[T, PT]) Delete(ctx context.Context, id string) error {
	e, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return nil
	}
	env := e.Envelope()
	if env.IsLocalOnly && env.AmplifyID == "" {
		r.logger.Debug("purging never-synced record locally", "collection", r.col.Name(), "id", id)
		return r.col.Remove(ctx, id)
	}
	return r.SetFields(ctx, id, map[string]any{"isDeleted": true})
}

// Remove hard-deletes the record locally.
func (r *Repo[T, PT]) Remove(ctx context.Context, id string) error {
	return r.col.Remove(ctx, id)
}

// PendingPush returns records waiting to be created or updated remotely.
func (r *Repo[T, PT]) PendingPush(ctx context.Context) ([]PT, error) {
	return r.Find(ctx, docstore.Filter{
		"isLocalOnly": true,
		"isDeleted":   docstore.Ne(true),
	}, docstore.Sort{Field: "createdAt"})
}

// PendingDeletes returns soft-deleted records the backend still knows about.
func (r *Repo[T, PT]) PendingDeletes(ctx context.Context) ([]PT, error) {
	return r.Find(ctx, docstore.Filter{
		"isDeleted": true,
		"amplifyId": docstore.Exists(true),
	}, docstore.Sort{Field: "createdAt"})
}

// MarkSynced flips the record to the synced state after a successful push.
func (r *Repo[T, PT]) MarkSynced(ctx context.Context, id, amplifyID string) error {
	return r.SetFields(ctx, id, map[string]any{
		"isLocalOnly":  false,
		"amplifyId":    amplifyID,
		"lastSyncedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Count returns the number of documents in the collection.
func (r *Repo[T, PT]) Count(ctx context.Context) (int, error) {
	return r.col.Count(ctx)
}

func encodeEntity[T any, PT interface {
	*T
	Syncable
}](e PT) (docstore.Document, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode entity document: %w", err)
	}
	return doc, nil
}

func decodeEntity[T any, PT interface {
	*T
	Syncable
}](doc docstore.Document) (PT, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode document into entity: %w", err)
	}
	return PT(&v), nil
}
