// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"time"

	"github.com/cleanpress/go-possync/docstore"
)

// SyncEnvelope carries the sync-control fields layered on top of every
// synchronizable entity's domain fields.
//
// Exactly one of these states describes a record at any time:
//   - pending-push:   IsLocalOnly && !IsDeleted
//   - pending-delete: IsDeleted && AmplifyID != ""
//   - synced:         !IsLocalOnly && AmplifyID != "" && !IsDeleted
//   - purely local:   IsLocalOnly && AmplifyID == "" (never pushed)
type SyncEnvelope struct {
	ID string `json:"id"`
	// IsLocalOnly is true until the record has been successfully pushed.
	IsLocalOnly bool `json:"isLocalOnly"`
	// IsDeleted marks a soft delete pending remote deletion.
	IsDeleted bool `json:"isDeleted"`
	// AmplifyID is the identifier the remote backend knows this record by.
	// Equal to ID under the default client-generated construction, but kept
	// separate to allow backend-assigned identifiers.
	AmplifyID    string     `json:"amplifyId,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// EntityID returns the primary key.
func (e *SyncEnvelope) EntityID() string { return e.ID }

// Envelope exposes the sync-control fields to the repository layer.
func (e *SyncEnvelope) Envelope() *SyncEnvelope { return e }

// PendingPush reports whether the record is waiting to be created or
// updated remotely.
func (e *SyncEnvelope) PendingPush() bool { return e.IsLocalOnly && !e.IsDeleted }

// PendingDelete reports whether the record is a soft-deleted, previously
// synced record waiting for its remote delete mutation.
func (e *SyncEnvelope) PendingDelete() bool { return e.IsDeleted && e.AmplifyID != "" }

// Syncable is implemented by every entity carrying a SyncEnvelope.
type Syncable interface {
	EntityID() string
	Envelope() *SyncEnvelope
}

// Customer is a dry-cleaning customer.
type Customer struct {
	SyncEnvelope
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Notes      string `json:"notes,omitempty"`
	BusinessID string `json:"businessId,omitempty"`
}

// OrderItem is a denormalized snapshot of a product at order-creation time.
// Later product edits never alter historical orders.
type OrderItem struct {
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	Price        float64 `json:"price"`
	CategoryName string  `json:"categoryName,omitempty"`
	Discount     float64 `json:"discount,omitempty"` // percent, 0-100
	Quantity     int     `json:"quantity"`
}

// StatusChange is one entry in an order's status history.
type StatusChange struct {
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
	Employee string    `json:"employee,omitempty"`
}

// PaymentInfo records how an order was paid. The payment provider is an
// opaque collaborator; only its outcome and identifier are stored.
type PaymentInfo struct {
	Method        string  `json:"method"`
	TransactionID string  `json:"transactionId,omitempty"`
	Last4         string  `json:"last4,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
}

// Order is a customer order. CustomerName/CustomerPhone are denormalized
// display copies frozen at creation; CustomerID is the live reference.
type Order struct {
	SyncEnvelope
	CustomerID    string         `json:"customerId"`
	CustomerName  string         `json:"customerName,omitempty"`
	CustomerPhone string         `json:"customerPhone,omitempty"`
	Items         []OrderItem    `json:"items"`
	Subtotal      float64        `json:"subtotal"`
	Tax           float64        `json:"tax"`
	Discount      float64        `json:"discount,omitempty"`
	Total         float64        `json:"total"`
	Status        string         `json:"status"`
	StatusHistory []StatusChange `json:"statusHistory,omitempty"`
	PaymentMethod string         `json:"paymentMethod,omitempty"`
	PaymentInfo   *PaymentInfo   `json:"paymentInfo,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	BusinessID    string         `json:"businessId,omitempty"`
	PickupDate    string         `json:"pickupDate,omitempty"`
}

// Product is a catalog item.
type Product struct {
	SyncEnvelope
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	CategoryID  string  `json:"categoryId,omitempty"`
	Discount    float64 `json:"discount,omitempty"` // percent, 0-100
	BusinessID  string  `json:"businessId,omitempty"`
}

// Category groups products. Version is a monotonically-incrementing edit
// counter used for conflict detection between independently-edited copies.
type Category struct {
	SyncEnvelope
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	Version    int    `json:"version"`
	BusinessID string `json:"businessId,omitempty"`
}

// BusinessSettings is the structured settings blob on a business record.
// Serialized to a JSON string for transport.
type BusinessSettings struct {
	TaxRate       float64 `json:"taxRate,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	ReceiptFooter string  `json:"receiptFooter,omitempty"`
}

// Business is the tenant record.
type Business struct {
	SyncEnvelope
	Name     string           `json:"name"`
	Phone    string           `json:"phone,omitempty"`
	Address  string           `json:"address,omitempty"`
	Email    string           `json:"email,omitempty"`
	Settings BusinessSettings `json:"settings,omitempty"`
	Version  int              `json:"version"`
}

// Employee is a local-only entity: staff PINs never leave the device, so
// there is no employee sync service.
type Employee struct {
	SyncEnvelope
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	PIN        string `json:"pin"`
	Role       string `json:"role,omitempty"`
	BusinessID string `json:"businessId,omitempty"`
}

// Schemas returns the document store schemas for all POS collections.
func Schemas() []docstore.Schema {
	return []docstore.Schema{
		{Name: CollectionCustomer, Required: []string{"name", "phone", "createdAt", "updatedAt"}},
		{Name: CollectionEmployee, Required: []string{"name", "pin", "createdAt", "updatedAt"}},
		{Name: CollectionCategory, Required: []string{"name", "version", "createdAt", "updatedAt"}},
		{Name: CollectionProduct, Required: []string{"productName", "price", "createdAt", "updatedAt"}},
		{Name: CollectionBusiness, Required: []string{"name", "version", "createdAt", "updatedAt"}},
		{Name: CollectionOrder, Required: []string{"customerId", "items", "total", "status", "createdAt", "updatedAt"}},
	}
}
