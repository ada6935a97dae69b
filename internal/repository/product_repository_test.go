package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"product-catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func newProduct(name, description string, price decimal.Decimal, createdAt time.Time) *domain.Product {
	return &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Price:       price,
		Status:      domain.ProductStatusActive,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func strPtr(s string) *string { return &s }

func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	productRepo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, description string, cents int64, category string, withImage bool) bool {
			ctx := context.Background()

			product := newProduct(name, description, decimal.New(cents, -2), time.Now().UTC().Truncate(time.Microsecond))
			if category != "" {
				product.Category = strPtr(category)
			}
			if withImage {
				product.Image = strPtr("uploads/products/" + uuid.NewString() + ".jpg")
			}

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}
			defer productRepo.Delete(ctx, product.ID)

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Name != product.Name || retrieved.Description != product.Description {
				t.Logf("FAIL: text mismatch. Expected %q/%q, got %q/%q",
					product.Name, product.Description, retrieved.Name, retrieved.Description)
				return false
			}

			if !retrieved.Price.Equal(product.Price) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", product.Price, retrieved.Price)
				return false
			}

			if (retrieved.Category == nil) != (product.Category == nil) ||
				(retrieved.Category != nil && *retrieved.Category != *product.Category) {
				t.Logf("FAIL: Category mismatch")
				return false
			}

			if (retrieved.Image == nil) != (product.Image == nil) ||
				(retrieved.Image != nil && *retrieved.Image != *product.Image) {
				t.Logf("FAIL: Image mismatch")
				return false
			}

			if retrieved.Status != domain.ProductStatusActive {
				t.Logf("FAIL: Status mismatch. Expected active, got %s", retrieved.Status)
				return false
			}

			if !retrieved.CreatedAt.Equal(product.CreatedAt) {
				t.Logf("FAIL: CreatedAt mismatch. Expected %v, got %v", product.CreatedAt, retrieved.CreatedAt)
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,255}`),
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{10,2000}`),
		gen.Int64Range(0, 9999999999),
		gen.OneConstOf("", "tools", "garden"),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_StoresColumnBoundariesExactly(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	product := newProduct(strings.Repeat("ñ", 255), strings.Repeat("d", 10000),
		decimal.RequireFromString("99999999.99"), time.Now().UTC().Truncate(time.Microsecond))
	product.Category = strPtr(strings.Repeat("c", 255))
	product.Image = strPtr("uploads/products/" + strings.Repeat("i", 483))

	if err := repo.Create(ctx, product); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer repo.Delete(ctx, product.ID)

	got, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Name != product.Name || got.Description != product.Description {
		t.Error("text columns were altered")
	}
	if !got.Price.Equal(product.Price) {
		t.Errorf("Price = %s, want %s", got.Price, product.Price)
	}
	if *got.Category != *product.Category || *got.Image != *product.Image {
		t.Error("category or image were altered")
	}
}

func TestProductRepository_RejectsValuesBeyondColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testDB)
	now := time.Now().UTC()

	tests := map[string]*domain.Product{
		"price at 10^8":      newProduct("n", "d", decimal.New(1, 8), now),
		"256 character name": newProduct(strings.Repeat("n", 256), "d", decimal.Zero, now),
	}

	for name, product := range tests {
		t.Run(name, func(t *testing.T) {
			if err := repo.Create(ctx, product); err == nil {
				repo.Delete(ctx, product.ID)
				t.Fatal("Create() succeeded, want a database error")
			}
		})
	}
}

func TestProductRepository_UpdateReplacesFields(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	product := newProduct("Widget", "A small widget", decimal.RequireFromString("9.99"), time.Now().UTC())
	product.Category = strPtr("tools")
	if err := repo.Create(ctx, product); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer repo.Delete(ctx, product.ID)

	product.Name = "Gadget"
	product.Description = "A larger gadget"
	product.Price = decimal.RequireFromString("19.50")
	product.Category = nil
	product.Status = domain.ProductStatusInactive
	product.Image = strPtr("uploads/products/new.png")
	product.UpdatedAt = time.Now().UTC()

	if err := repo.Update(ctx, product); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}

	if got.Name != "Gadget" || got.Description != "A larger gadget" || !got.Price.Equal(product.Price) {
		t.Errorf("Update() not reflected: %+v", got)
	}
	if got.Category != nil {
		t.Errorf("Category = %q, want NULL", *got.Category)
	}
	if got.Status != domain.ProductStatusInactive {
		t.Errorf("Status = %s, want inactive", got.Status)
	}
	if got.Image == nil || *got.Image != "uploads/products/new.png" {
		t.Errorf("Image = %v, want uploads/products/new.png", got.Image)
	}
}

func TestProductRepository_UpdateStatusOnlyTouchesStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	product := newProduct("Lamp", "Desk lamp", decimal.RequireFromString("12.00"), time.Now().UTC().Truncate(time.Microsecond))
	if err := repo.Create(ctx, product); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer repo.Delete(ctx, product.ID)

	if err := repo.UpdateStatus(ctx, product.ID, domain.ProductStatusInactive, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Status != domain.ProductStatusInactive {
		t.Errorf("Status = %s, want inactive", got.Status)
	}
	if got.Name != product.Name || !got.Price.Equal(product.Price) || !got.CreatedAt.Equal(product.CreatedAt) {
		t.Errorf("UpdateStatus() changed other fields: %+v", got)
	}
}

func TestProductRepository_MissingRowsReportNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testDB)
	missing := uuid.New()

	if _, err := repo.FindByID(ctx, missing); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("FindByID() error = %v, want ErrProductNotFound", err)
	}
	if err := repo.Update(ctx, newProduct("x", "y", decimal.Zero, time.Now())); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Update() error = %v, want ErrProductNotFound", err)
	}
	if err := repo.UpdateStatus(ctx, missing, domain.ProductStatusActive, time.Now()); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrProductNotFound", err)
	}
	if err := repo.Delete(ctx, missing); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Delete() error = %v, want ErrProductNotFound", err)
	}
}

func TestProductRepository_Search(t *testing.T) {
	resetProducts(t)
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	base := time.Now().UTC().Add(-time.Hour)
	fixtures := []*domain.Product{
		newProduct("Widget", "A small widget", decimal.RequireFromString("9.99"), base),
		newProduct("Gizmo", "Contains a WIDGET inside", decimal.RequireFromString("5.00"), base.Add(time.Minute)),
		newProduct("Sprocket", "Plain part", decimal.RequireFromString("1.00"), base.Add(2*time.Minute)),
		newProduct("100% cotton", "Shirt", decimal.RequireFromString("20.00"), base.Add(3*time.Minute)),
	}
	for _, p := range fixtures {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, total, err := repo.Search(ctx, "widget", 8, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("Search(widget) returned %d rows (total %d), want 2", len(got), total)
	}
	if got[0].Name != "Gizmo" || got[1].Name != "Widget" {
		t.Errorf("Search(widget) order = %s, %s; want newest first", got[0].Name, got[1].Name)
	}

	if _, total, _ := repo.Search(ctx, "gadget", 8, 0); total != 0 {
		t.Errorf("Search(gadget) total = %d, want 0", total)
	}

	// wildcards in the term match literally
	if _, total, _ := repo.Search(ctx, "%", 8, 0); total != 1 {
		t.Errorf("Search(%%) total = %d, want 1", total)
	}

	all, total, err := repo.Search(ctx, "  ", 8, 0)
	if err != nil {
		t.Fatalf("Search(blank) error = %v", err)
	}
	if total != len(fixtures) || all[0].Name != "100% cotton" {
		t.Errorf("Search(blank) total = %d first = %s", total, all[0].Name)
	}
}

func TestProperty_SearchPagesAreBoundedAndOrdered(t *testing.T) {
	resetProducts(t)
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	base := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < 21; i++ {
		name := fmt.Sprintf("Item %02d", i)
		if i%3 == 0 {
			name = fmt.Sprintf("Special abc %02d", i)
		}
		p := newProduct(name, "generated fixture", decimal.New(int64(i*100), -2), base.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	properties := gopter.NewProperties(nil)

	properties.Property("every page has at most limit rows that match, newest first", prop.ForAll(
		func(term string, page int) bool {
			limit := 8
			products, total, err := repo.Search(ctx, term, limit, (page-1)*limit)
			if err != nil {
				t.Logf("FAIL: Search() error = %v", err)
				return false
			}
			if len(products) > limit {
				return false
			}
			if want := total - (page-1)*limit; want >= 0 && len(products) != min(limit, want) {
				t.Logf("FAIL: page %d of %d matches has %d rows", page, total, len(products))
				return false
			}
			for i, p := range products {
				haystack := strings.ToLower(p.Name + " " + p.Description)
				if !strings.Contains(haystack, strings.ToLower(strings.TrimSpace(term))) {
					return false
				}
				if i > 0 && products[i-1].CreatedAt.Before(p.CreatedAt) {
					return false
				}
			}
			return true
		},
		gen.OneConstOf("", "abc", "ABC", "item", "fixture", "none"),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ProductDeletionRemovesFromCatalog(t *testing.T) {
	productRepo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("deleting a product makes it not retrievable", prop.ForAll(
		func(name string, description string) bool {
			ctx := context.Background()

			product := newProduct(name, description, decimal.RequireFromString("3.50"), time.Now().UTC())
			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			if err := productRepo.Delete(ctx, product.ID); err != nil {
				t.Logf("FAIL: Failed to delete product: %v", err)
				return false
			}

			_, err := productRepo.FindByID(ctx, product.ID)
			if !errors.Is(err, ErrProductNotFound) {
				t.Logf("FAIL: Expected ErrProductNotFound after deletion, got: %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{10,200}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
