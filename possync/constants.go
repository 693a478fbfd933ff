// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

// Entity type names as they appear in backend mutation/query names
// (CreateCustomer, ListOrders, ...).
const (
	EntityBusiness = "Business"
	EntityCategory = "Category"
	EntityProduct  = "Product"
	EntityCustomer = "Customer"
	EntityOrder    = "Order"
)

// Collection names in the local document store.
const (
	CollectionCustomer = "customer"
	CollectionEmployee = "employee"
	CollectionCategory = "category"
	CollectionProduct  = "product"
	CollectionBusiness = "business"
	CollectionOrder    = "order"
)

// Order lifecycle statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusCleaning  = "cleaning"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Payment methods recorded on orders.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTerminal = "terminal"
)

// Push batching for the order sync: groups of batch size pushed with
// concurrent requests inside a batch, sequential batches with an inter-batch
// delay to avoid overwhelming the backend.
const (
	orderPushBatchSize  = 5
	orderPushBatchDelay = 100 // milliseconds

	// Bounded page size for the pull phase.
	pullPageLimit = 1000
)
