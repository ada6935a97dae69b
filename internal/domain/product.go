package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus is the two-valued availability flag of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    *string         `json:"category" db:"category"`
	Status      ProductStatus   `json:"status" db:"status"`
	Image       *string         `json:"image" db:"image"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`

	// ImageURL is derived from Image on read and never persisted.
	ImageURL *string `json:"image_url" db:"-"`
}

// ProductInput carries the submitted fields for create and edit.
// Price stays a string as submitted and is parsed after validation.
type ProductInput struct {
	Name        string `json:"name" form:"name" validate:"required,max=255"`
	Description string `json:"description" form:"description" validate:"required"`
	Price       string `json:"price" form:"price" validate:"required,price"`
	Category    string `json:"category" form:"category" validate:"omitempty,max=255"`
	Status      string `json:"status" form:"status" validate:"omitempty,oneof=active inactive"`
}
