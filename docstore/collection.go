// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Document is a decoded JSON document. Every document carries a string "id".
type Document map[string]any

// ID returns the document id ("" when absent).
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// clone returns a shallow copy so callers cannot mutate stored state through
// a returned document.
func (d Document) clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ErrDuplicateID is returned by Insert when the id is already taken.
var ErrDuplicateID = errors.New("docstore: duplicate document id")

// ErrNotFound is returned by Update/Replace when the document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Collection is one named set of documents backed by a single SQLite table.
type Collection struct {
	store  *Store
	name   string
	table  string
	schema Schema
	feed   *changeFeed
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Find returns all documents matching the filter, ordered by the sort specs.
func (c *Collection) Find(ctx context.Context, filter Filter, sorts ...Sort) ([]Document, error) {
	if err := c.store.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := c.store.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %q`, c.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", c.name, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document in %s: %w", c.name, err)
		}
		if filter.Matches(doc) {
			docs = append(docs, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection %s: %w", c.name, err)
	}

	applySort(docs, sorts)
	return docs, nil
}

// FindOne returns the document with the given id, or nil when absent.
func (c *Collection) FindOne(ctx context.Context, id string) (Document, error) {
	if err := c.store.checkOpen(); err != nil {
		return nil, err
	}

	var raw string
	err := c.store.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %q WHERE id = ?`, c.table), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document %s/%s: %w", c.name, id, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", c.name, id, err)
	}
	return doc, nil
}

// Insert validates the document against the collection schema and stores it.
// The id must not already be in use.
func (c *Collection) Insert(ctx context.Context, doc Document) error {
	if err := c.store.checkOpen(); err != nil {
		return err
	}
	if err := c.schema.Validate(doc); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document for %s: %w", c.name, err)
	}

	c.store.writeMu.Lock()
	defer c.store.writeMu.Unlock()

	existing, err := c.existsLocked(ctx, doc.ID())
	if err != nil {
		return err
	}
	if existing {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateID, c.name, doc.ID())
	}

	_, err = c.store.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %q (id, doc) VALUES (?, ?)`, c.table), doc.ID(), string(raw))
	if err != nil {
		return fmt.Errorf("failed to insert document %s/%s: %w", c.name, doc.ID(), err)
	}

	c.feed.publish(ChangeEvent{Collection: c.name, Op: OpInsert, ID: doc.ID(), Doc: doc.clone()})
	return nil
}

// Update applies a $set-style partial update to the stored document.
func (c *Collection) Update(ctx context.Context, id string, set map[string]any) error {
	if err := c.store.checkOpen(); err != nil {
		return err
	}

	c.store.writeMu.Lock()
	defer c.store.writeMu.Unlock()

	doc, err := c.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
	}

	for k, v := range set {
		if k == "id" {
			continue // the primary key is immutable
		}
		doc[k] = v
	}

	return c.writeLocked(ctx, id, doc, OpUpdate)
}

// Replace stores a full replacement document under the same id.
func (c *Collection) Replace(ctx context.Context, id string, doc Document) error {
	if err := c.store.checkOpen(); err != nil {
		return err
	}
	if doc.ID() != id {
		return fmt.Errorf("docstore: replace id mismatch: %s vs %s", id, doc.ID())
	}
	if err := c.schema.Validate(doc); err != nil {
		return err
	}

	c.store.writeMu.Lock()
	defer c.store.writeMu.Unlock()

	existing, err := c.existsLocked(ctx, id)
	if err != nil {
		return err
	}
	if !existing {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
	}

	return c.writeLocked(ctx, id, doc, OpUpdate)
}

// Remove hard-deletes the document. Removing an absent id is not an error.
func (c *Collection) Remove(ctx context.Context, id string) error {
	if err := c.store.checkOpen(); err != nil {
		return err
	}

	c.store.writeMu.Lock()
	defer c.store.writeMu.Unlock()

	res, err := c.store.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, c.table), id)
	if err != nil {
		return fmt.Errorf("failed to remove document %s/%s: %w", c.name, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.feed.publish(ChangeEvent{Collection: c.name, Op: OpRemove, ID: id})
	}
	return nil
}

// Count returns the number of documents in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if err := c.store.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := c.store.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %q`, c.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count collection %s: %w", c.name, err)
	}
	return n, nil
}

// Subscribe registers a change feed subscriber. The returned cancel function
// must be called to release the subscription.
func (c *Collection) Subscribe(buffer int) (<-chan ChangeEvent, func()) {
	return c.feed.subscribe(buffer)
}

func (c *Collection) existsLocked(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := c.store.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %q WHERE id = ?)`, c.table), id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check document %s/%s: %w", c.name, id, err)
	}
	return exists, nil
}

func (c *Collection) writeLocked(ctx context.Context, id string, doc Document, op ChangeOp) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document for %s: %w", c.name, err)
	}
	_, err = c.store.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %q SET doc = ? WHERE id = ?`, c.table), string(raw), id)
	if err != nil {
		return fmt.Errorf("failed to write document %s/%s: %w", c.name, id, err)
	}
	c.feed.publish(ChangeEvent{Collection: c.name, Op: op, ID: id, Doc: doc.clone()})
	return nil
}
