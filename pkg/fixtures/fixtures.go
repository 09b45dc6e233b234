// Package fixtures seeds demo accounts and products so a fresh deployment
// has something to browse and sign into.
package fixtures

import (
	"context"
	"fmt"

	"github.com/example/farmmarket/pkg/identity"
	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/store"
)

// DemoPassword is the shared password for all seeded accounts.
const DemoPassword = "harvest2024"

func farmers() []models.Profile {
	return []models.Profile{
		{
			ID:       "f1",
			Name:     "John Smith",
			Email:    "john@greenvalley.example",
			Role:     models.RoleFarmer,
			FarmName: "Green Valley Farm",
			Location: "Springfield, IL",
			Bio:      "Third-generation farmer specializing in organic vegetables.",
		},
		{
			ID:       "f2",
			Name:     "Maria Rodriguez",
			Email:    "maria@sunshineorchards.example",
			Role:     models.RoleFarmer,
			FarmName: "Sunshine Orchards",
			Location: "Riverside, CA",
			Bio:      "Family-owned orchard with a focus on sustainable farming practices.",
		},
	}
}

func consumers() []models.Profile {
	return []models.Profile{
		{
			ID:    "c1",
			Name:  "Sarah Lee",
			Email: "sarah@example.com",
			Role:  models.RoleConsumer,
		},
	}
}

func products() []models.Product {
	return []models.Product{
		{
			ID:          "p1",
			FarmerID:    "f1",
			Name:        "Organic Carrots",
			Category:    "Vegetables",
			Price:       3.99,
			Unit:        "bunch",
			Description: "Fresh organic carrots harvested this week. Perfect for salads and juicing.",
			Stock:       50,
			Images:      []string{"/images/carrots.jpg"},
			Organic:     true,
			Featured:    true,
		},
		{
			ID:          "p2",
			FarmerID:    "f1",
			Name:        "Red Tomatoes",
			Category:    "Vegetables",
			Price:       4.50,
			Unit:        "lb",
			Description: "Vine-ripened tomatoes, perfect for salads and sandwiches.",
			Stock:       30,
			Images:      []string{"/images/tomatoes.jpg"},
			Organic:     true,
		},
		{
			ID:          "p3",
			FarmerID:    "f2",
			Name:        "Fresh Spinach",
			Category:    "Leafy Greens",
			Price:       3.25,
			Unit:        "bunch",
			Description: "Tender spinach leaves, washed and ready to use.",
			Stock:       25,
			Images:      []string{"/images/spinach.jpg"},
			Organic:     true,
			Featured:    true,
		},
		{
			ID:          "p4",
			FarmerID:    "f2",
			Name:        "Green Bell Peppers",
			Category:    "Vegetables",
			Price:       2.99,
			Unit:        "lb",
			Description: "Crisp green bell peppers, great for stir-fries and salads.",
			Stock:       40,
			Images:      []string{"/images/peppers.jpg"},
		},
	}
}

// Seed loads the demo data. Accounts are registered through the identity
// provider when it supports demo registration so seeded users can sign in.
func Seed(ctx context.Context, recordStore store.RecordStore, provider identity.Provider) error {
	mem, _ := provider.(*identity.MemoryProvider)

	for _, profile := range append(farmers(), consumers()...) {
		if mem != nil {
			if err := mem.RegisterDemoAccount(ctx, profile, DemoPassword); err != nil {
				return fmt.Errorf("seed account %s: %w", profile.Email, err)
			}
			continue
		}
		if err := recordStore.CreateProfile(ctx, &profile); err != nil {
			return fmt.Errorf("seed profile %s: %w", profile.ID, err)
		}
	}

	for _, product := range products() {
		p := product
		if err := recordStore.CreateProduct(ctx, &p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	return nil
}
