// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"log/slog"
	"time"
)

// CustomerSync reconciles the customer collection.
type CustomerSync struct{ *Syncer }

// NewCustomerSync creates the customer sync service.
func NewCustomerSync(repo *CustomerRepo, backend Backend, logger *slog.Logger) *CustomerSync {
	d := &repoDelegate[Customer, *Customer]{
		name:     EntityCustomer,
		repo:     repo,
		toWire:   customerToWire,
		fromWire: customerFromWire,
	}
	return &CustomerSync{newSyncer(backend, d, logger)}
}

// ProductSync reconciles the product catalog.
type ProductSync struct{ *Syncer }

// NewProductSync creates the product sync service.
func NewProductSync(repo *ProductRepo, backend Backend, logger *slog.Logger) *ProductSync {
	d := &repoDelegate[Product, *Product]{
		name:     EntityProduct,
		repo:     repo,
		toWire:   productToWire,
		fromWire: productFromWire,
	}
	return &ProductSync{newSyncer(backend, d, logger)}
}

// BusinessSync reconciles the business (tenant) record. A remote copy with a
// strictly higher version replaces a local copy that has no unpushed edits;
// otherwise the local copy wins until its own push completes.
type BusinessSync struct {
	*Syncer
	repo *BusinessRepo
}

// NewBusinessSync creates the business sync service.
func NewBusinessSync(repo *BusinessRepo, backend Backend, logger *slog.Logger) *BusinessSync {
	bs := &BusinessSync{repo: repo}
	d := &repoDelegate[Business, *Business]{
		name:       EntityBusiness,
		repo:       repo,
		toWire:     businessToWire,
		fromWire:   businessFromWire,
		onExisting: bs.onExisting,
	}
	bs.Syncer = newSyncer(backend, d, logger)
	return bs
}

func (bs *BusinessSync) onExisting(ctx context.Context, local *Business, obj map[string]any) (pullOutcome, error) {
	remote, err := businessFromWire(obj)
	if err != nil {
		return pullSkipped, err
	}
	if remote.Version > local.Version && !local.PendingPush() {
		if err := bs.repo.Save(ctx, remote); err != nil {
			return pullSkipped, err
		}
		return pullUpdated, nil
	}
	return pullSkipped, nil
}

// OrderSync reconciles orders. Orders are the highest-volume entity on a
// busy counter day, so pushes go out in small concurrent batches with a
// fixed pause between batches.
type OrderSync struct{ *Syncer }

// NewOrderSync creates the order sync service.
func NewOrderSync(repo *OrderRepo, backend Backend, logger *slog.Logger) *OrderSync {
	d := &repoDelegate[Order, *Order]{
		name:     EntityOrder,
		repo:     repo,
		toWire:   orderToWire,
		fromWire: orderFromWire,
	}
	s := newSyncer(backend, d, logger)
	s.batchSize = orderPushBatchSize
	s.batchDelay = orderPushBatchDelay * time.Millisecond
	return &OrderSync{s}
}
