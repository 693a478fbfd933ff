// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"log/slog"
)

// defaultCategories are the stock dry-cleaning categories seeded on first
// launch so the register is usable before anything has been configured.
var defaultCategories = []Category{
	{Name: "Dry Cleaning", Color: "#2563EB", Version: 1},
	{Name: "Laundry", Color: "#16A34A", Version: 1},
	{Name: "Alterations", Color: "#9333EA", Version: 1},
	{Name: "Shoe Repair", Color: "#D97706", Version: 1},
	{Name: "Household", Color: "#0D9488", Version: 1},
}

// SeedDefaultData populates stock categories and a placeholder business
// record on an empty store. Seeding is idempotent: collections that already
// contain records are left alone, so it is safe to call on every startup.
// Seeded records start local-only and upload on the first sync pass.
func SeedDefaultData(ctx context.Context, categories *CategoryRepo, businesses *BusinessRepo, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	n, err := categories.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		for _, c := range defaultCategories {
			c := c
			if err := categories.Insert(ctx, &c); err != nil {
				return err
			}
		}
		logger.Info("seeded default categories", "count", len(defaultCategories))
	}

	n, err = businesses.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		b := &Business{
			Name:    "My Dry Cleaners",
			Version: 1,
			Settings: BusinessSettings{
				TaxRate:  0.0,
				Currency: "USD",
			},
		}
		if err := businesses.Insert(ctx, b); err != nil {
			return err
		}
		logger.Info("seeded default business record")
	}
	return nil
}
