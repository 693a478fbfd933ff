// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package docstore

import "fmt"

// Schema describes one collection: its name and the top-level fields that
// must be present and non-null on every inserted document.
type Schema struct {
	Name     string
	Required []string
}

// Validate checks a document against the schema.
func (s Schema) Validate(doc Document) error {
	if doc == nil {
		return fmt.Errorf("docstore: nil document for collection %s", s.Name)
	}
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("docstore: document for collection %s is missing string id", s.Name)
	}
	for _, field := range s.Required {
		v, ok := doc[field]
		if !ok || v == nil {
			return fmt.Errorf("docstore: document %s/%s is missing required field %q", s.Name, id, field)
		}
	}
	return nil
}
