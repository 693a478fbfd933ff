// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// Filter maps field names to match conditions. A plain value matches by
// equality; Ne and Exists build the $ne / $exists conditions. An empty (or
// nil) filter matches every document.
type Filter map[string]any

type neCond struct{ value any }

type existsCond struct{ want bool }

// Ne builds a not-equal condition ($ne).
func Ne(v any) any { return neCond{value: v} }

// Exists builds a field-presence condition ($exists). A field holding an
// explicit null counts as absent, matching the store's validation rules.
func Exists(want bool) any { return existsCond{want: want} }

// Matches reports whether a document satisfies every condition in the filter.
func (f Filter) Matches(doc Document) bool {
	for field, cond := range f {
		val, present := doc[field]
		if val == nil {
			present = false
		}
		switch c := cond.(type) {
		case neCond:
			if present && looseEqual(val, c.value) {
				return false
			}
		case existsCond:
			if present != c.want {
				return false
			}
		default:
			if !present || !looseEqual(val, cond) {
				return false
			}
		}
	}
	return true
}

// looseEqual compares two values, treating all numeric types as float64 the
// way encoding/json decodes them.
func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Sort describes an in-memory ordering over a result set.
type Sort struct {
	Field string
	Desc  bool
}

// applySort orders documents by the given specs, comparing numbers
// numerically and everything else by string form.
func applySort(docs []Document, specs []Sort) {
	if len(specs) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, spec := range specs {
			cmp := compareValues(docs[i][spec.Field], docs[j][spec.Field])
			if cmp == 0 {
				continue
			}
			if spec.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}
