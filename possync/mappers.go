// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Bidirectional local-schema ↔ wire-schema mappers, one pure function pair
// per entity. All field-name remapping (local name vs wire businessName,
// local productName vs wire name) and JSON-string serialization of
// structured fields happens here, never inside the sync loop.

package possync

import (
	"encoding/json"
	"fmt"
	"time"
)

// --- Customer ---

func customerToWire(c *Customer) (map[string]any, error) {
	w := map[string]any{
		"id":        c.ID,
		"name":      c.Name,
		"phone":     c.Phone,
		"createdAt": wireTime(c.CreatedAt),
		"updatedAt": wireTime(c.UpdatedAt),
	}
	putString(w, "email", c.Email)
	putString(w, "notes", c.Notes)
	putString(w, "businessId", c.BusinessID)
	return w, nil
}

func customerFromWire(obj map[string]any) (*Customer, error) {
	id := getString(obj, "id")
	if id == "" {
		return nil, fmt.Errorf("customer wire record missing id")
	}
	c := &Customer{
		SyncEnvelope: envelopeFromWire(obj, id),
		Name:         getString(obj, "name"),
		Phone:        getString(obj, "phone"),
		Email:        getString(obj, "email"),
		Notes:        getString(obj, "notes"),
		BusinessID:   getString(obj, "businessId"),
	}
	if c.Name == "" {
		c.Name = "Unknown"
	}
	return c, nil
}

// --- Category ---

func categoryToWire(c *Category) (map[string]any, error) {
	w := map[string]any{
		"id":        c.ID,
		"name":      c.Name,
		"version":   c.Version,
		"createdAt": wireTime(c.CreatedAt),
		"updatedAt": wireTime(c.UpdatedAt),
	}
	putString(w, "color", c.Color)
	putString(w, "businessId", c.BusinessID)
	return w, nil
}

func categoryFromWire(obj map[string]any) (*Category, error) {
	id := getString(obj, "id")
	if id == "" {
		return nil, fmt.Errorf("category wire record missing id")
	}
	c := &Category{
		SyncEnvelope: envelopeFromWire(obj, id),
		Name:         getString(obj, "name"),
		Color:        getString(obj, "color"),
		Version:      getInt(obj, "version"),
		BusinessID:   getString(obj, "businessId"),
	}
	if c.Version < 1 {
		c.Version = 1
	}
	return c, nil
}

// --- Product (local productName ↔ wire name) ---

func productToWire(p *Product) (map[string]any, error) {
	w := map[string]any{
		"id":        p.ID,
		"name":      p.ProductName,
		"price":     ToPreciseAmount(p.Price),
		"createdAt": wireTime(p.CreatedAt),
		"updatedAt": wireTime(p.UpdatedAt),
	}
	putString(w, "description", p.Description)
	putString(w, "categoryId", p.CategoryID)
	putString(w, "businessId", p.BusinessID)
	if p.Discount != 0 {
		w["discount"] = p.Discount
	}
	return w, nil
}

func productFromWire(obj map[string]any) (*Product, error) {
	id := getString(obj, "id")
	if id == "" {
		return nil, fmt.Errorf("product wire record missing id")
	}
	return &Product{
		SyncEnvelope: envelopeFromWire(obj, id),
		ProductName:  getString(obj, "name"),
		Price:        ToPreciseAmount(getFloat(obj, "price")),
		Description:  getString(obj, "description"),
		CategoryID:   getString(obj, "categoryId"),
		Discount:     getFloat(obj, "discount"),
		BusinessID:   getString(obj, "businessId"),
	}, nil
}

// --- Business (local name ↔ wire businessName; settings as JSON string) ---

func businessToWire(b *Business) (map[string]any, error) {
	settings, err := json.Marshal(b.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize business settings: %w", err)
	}
	w := map[string]any{
		"id":           b.ID,
		"businessName": b.Name,
		"settings":     string(settings),
		"version":      b.Version,
		"createdAt":    wireTime(b.CreatedAt),
		"updatedAt":    wireTime(b.UpdatedAt),
	}
	putString(w, "phone", b.Phone)
	putString(w, "address", b.Address)
	putString(w, "email", b.Email)
	return w, nil
}

func businessFromWire(obj map[string]any) (*Business, error) {
	id := getString(obj, "id")
	if id == "" {
		return nil, fmt.Errorf("business wire record missing id")
	}
	b := &Business{
		SyncEnvelope: envelopeFromWire(obj, id),
		Name:         getString(obj, "businessName"),
		Phone:        getString(obj, "phone"),
		Address:      getString(obj, "address"),
		Email:        getString(obj, "email"),
		Version:      getInt(obj, "version"),
	}
	if raw := getString(obj, "settings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &b.Settings); err != nil {
			return nil, fmt.Errorf("failed to parse business settings: %w", err)
		}
	}
	if b.Version < 1 {
		b.Version = 1
	}
	return b, nil
}

// --- Order (items/statusHistory/paymentInfo as JSON strings) ---

func orderToWire(o *Order) (map[string]any, error) {
	items := make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.Price = ToPreciseAmount(item.Price)
		items[i] = item
	}
	rawItems, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize order items: %w", err)
	}

	w := map[string]any{
		"id":         o.ID,
		"customerId": o.CustomerID,
		"items":      string(rawItems),
		"subtotal":   ToPreciseAmount(o.Subtotal),
		"tax":        ToPreciseAmount(o.Tax),
		"total":      ToPreciseAmount(o.Total),
		"status":     o.Status,
		"createdAt":  wireTime(o.CreatedAt),
		"updatedAt":  wireTime(o.UpdatedAt),
	}
	putString(w, "customerName", o.CustomerName)
	putString(w, "customerPhone", o.CustomerPhone)
	putString(w, "paymentMethod", o.PaymentMethod)
	putString(w, "notes", o.Notes)
	putString(w, "businessId", o.BusinessID)
	putString(w, "pickupDate", o.PickupDate)
	if o.Discount != 0 {
		w["discount"] = ToPreciseAmount(o.Discount)
	}
	if len(o.StatusHistory) > 0 {
		raw, err := json.Marshal(o.StatusHistory)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize status history: %w", err)
		}
		w["statusHistory"] = string(raw)
	}
	if o.PaymentInfo != nil {
		raw, err := json.Marshal(o.PaymentInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize payment info: %w", err)
		}
		w["paymentInfo"] = string(raw)
	}
	return w, nil
}

func orderFromWire(obj map[string]any) (*Order, error) {
	id := getString(obj, "id")
	if id == "" {
		return nil, fmt.Errorf("order wire record missing id")
	}

	o := &Order{
		SyncEnvelope:  envelopeFromWire(obj, id),
		CustomerID:    getString(obj, "customerId"),
		CustomerName:  getString(obj, "customerName"),
		CustomerPhone: getString(obj, "customerPhone"),
		Items:         []OrderItem{},
		Subtotal:      ToPreciseAmount(getFloat(obj, "subtotal")),
		Tax:           ToPreciseAmount(getFloat(obj, "tax")),
		Discount:      ToPreciseAmount(getFloat(obj, "discount")),
		Total:         ToPreciseAmount(getFloat(obj, "total")),
		Status:        getString(obj, "status"),
		PaymentMethod: getString(obj, "paymentMethod"),
		Notes:         getString(obj, "notes"),
		BusinessID:    getString(obj, "businessId"),
		PickupDate:    getString(obj, "pickupDate"),
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}

	if raw := getString(obj, "items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &o.Items); err != nil {
			return nil, fmt.Errorf("failed to parse order items: %w", err)
		}
	}
	for i := range o.Items {
		o.Items[i].Price = ToPreciseAmount(o.Items[i].Price)
	}
	if o.Items == nil {
		o.Items = []OrderItem{}
	}

	if raw := getString(obj, "statusHistory"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &o.StatusHistory); err != nil {
			return nil, fmt.Errorf("failed to parse status history: %w", err)
		}
	}
	if raw := getString(obj, "paymentInfo"); raw != "" {
		var info PaymentInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, fmt.Errorf("failed to parse payment info: %w", err)
		}
		o.PaymentInfo = &info
	}
	return o, nil
}

// --- shared helpers ---

// envelopeFromWire builds the local sync envelope for a record arriving
// from the backend: it is known remotely, so isLocalOnly is false and
// amplifyId is stamped.
func envelopeFromWire(obj map[string]any, id string) SyncEnvelope {
	now := time.Now().UTC()
	return SyncEnvelope{
		ID:           id,
		IsLocalOnly:  false,
		IsDeleted:    false,
		AmplifyID:    id,
		LastSyncedAt: &now,
		CreatedAt:    getTime(obj, "createdAt", now),
		UpdatedAt:    getTime(obj, "updatedAt", now),
	}
}

func wireTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func putString(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}

func getString(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func getFloat(obj map[string]any, key string) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

func getInt(obj map[string]any, key string) int {
	return int(getFloat(obj, key))
}

func getTime(obj map[string]any, key string, fallback time.Time) time.Time {
	raw := getString(obj, key)
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
