// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"fmt"
	"strings"
)

// Direction distinguishes records uploaded to the backend from records
// downloaded into the local store.
type Direction int

const (
	ToCloud Direction = iota
	FromCloud
)

// Action classifies what happened to a record during a sync pass.
type Action int

const (
	ActionAdded Action = iota
	ActionUpdated
	ActionDeleted
)

type entityCounts struct {
	uploadedAdded   int
	uploadedUpdated int
	uploadedDeleted int
	downloadAdded   int
	downloadUpdated int
	downloadDeleted int
}

func (c *entityCounts) empty() bool {
	return c.uploadedAdded == 0 && c.uploadedUpdated == 0 && c.uploadedDeleted == 0 &&
		c.downloadAdded == 0 && c.downloadUpdated == 0 && c.downloadDeleted == 0
}

// NotificationBuilder aggregates per-entity added/updated/deleted counts in
// both directions and renders a human-readable summary for the manual sync
// trigger's result screen.
type NotificationBuilder struct {
	counts map[string]*entityCounts
}

// NewNotificationBuilder creates an empty builder.
func NewNotificationBuilder() *NotificationBuilder {
	return &NotificationBuilder{counts: make(map[string]*entityCounts)}
}

// Record registers one record-level outcome for an entity.
func (n *NotificationBuilder) Record(entity string, dir Direction, action Action) {
	c := n.counts[entity]
	if c == nil {
		c = &entityCounts{}
		n.counts[entity] = c
	}
	switch {
	case dir == ToCloud && action == ActionAdded:
		c.uploadedAdded++
	case dir == ToCloud && action == ActionUpdated:
		c.uploadedUpdated++
	case dir == ToCloud && action == ActionDeleted:
		c.uploadedDeleted++
	case dir == FromCloud && action == ActionAdded:
		c.downloadAdded++
	case dir == FromCloud && action == ActionUpdated:
		c.downloadUpdated++
	case dir == FromCloud && action == ActionDeleted:
		c.downloadDeleted++
	}
}

// Merge folds another builder's counts into this one.
func (n *NotificationBuilder) Merge(other *NotificationBuilder) {
	if other == nil {
		return
	}
	for entity, oc := range other.counts {
		c := n.counts[entity]
		if c == nil {
			c = &entityCounts{}
			n.counts[entity] = c
		}
		c.uploadedAdded += oc.uploadedAdded
		c.uploadedUpdated += oc.uploadedUpdated
		c.uploadedDeleted += oc.uploadedDeleted
		c.downloadAdded += oc.downloadAdded
		c.downloadUpdated += oc.downloadUpdated
		c.downloadDeleted += oc.downloadDeleted
	}
}

// Empty reports whether nothing was recorded.
func (n *NotificationBuilder) Empty() bool {
	for _, c := range n.counts {
		if !c.empty() {
			return false
		}
	}
	return true
}

// entitySummaryOrder fixes the rendering order to match the orchestrator's
// sync sequence.
var entitySummaryOrder = []string{
	EntityBusiness, EntityCategory, EntityProduct, EntityCustomer, EntityOrder,
}

// Summary renders only the non-zero lines, e.g.
// "Orders: 3 uploaded · Categories: 1 downloaded, 1 deleted remotely".
func (n *NotificationBuilder) Summary() string {
	var parts []string
	for _, entity := range entitySummaryOrder {
		c := n.counts[entity]
		if c == nil || c.empty() {
			continue
		}
		var bits []string
		if v := c.uploadedAdded + c.uploadedUpdated; v > 0 {
			bits = append(bits, fmt.Sprintf("%d uploaded", v))
		}
		if c.uploadedDeleted > 0 {
			bits = append(bits, fmt.Sprintf("%d deleted remotely", c.uploadedDeleted))
		}
		if v := c.downloadAdded + c.downloadUpdated; v > 0 {
			bits = append(bits, fmt.Sprintf("%d downloaded", v))
		}
		if c.downloadDeleted > 0 {
			bits = append(bits, fmt.Sprintf("%d removed locally", c.downloadDeleted))
		}
		parts = append(parts, fmt.Sprintf("%s: %s", pluralFor(entity), strings.Join(bits, ", ")))
	}
	if len(parts) == 0 {
		return "Everything is up to date"
	}
	return strings.Join(parts, " · ")
}
