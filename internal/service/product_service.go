package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"product-catalog/internal/domain"
	"product-catalog/internal/pagination"
	"product-catalog/internal/repository"
	"product-catalog/internal/upload"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PageSize is the fixed number of products per listing page
const PageSize = 8

// maxPrice is the first value a NUMERIC(10, 2) column cannot hold
var maxPrice = decimal.New(1, 8)

// ErrImageStorage is returned when an uploaded image cannot be persisted
var ErrImageStorage = errors.New("image storage failed")

// ValidationError carries field-level failures for a submitted input
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Errors.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Errors
}

// ImageStore is the subset of the upload manager the service relies on
type ImageStore interface {
	Store(folder string, file upload.File, name string) (string, error)
	Delete(relativePath string) (bool, error)
	URLFor(relativePath string) (string, bool)
}

// ListParams selects one page of the catalog
type ListParams struct {
	// Search is the term as submitted; nil when the request carried none
	Search *string
	Page   int

	// Path and Query are used to build pagination links
	Path  string
	Query url.Values
}

// Filters echoes the filters a page was produced with
type Filters struct {
	Search *string `json:"search"`
}

// ProductPage is one page of the listing plus its navigation
type ProductPage struct {
	Data []*domain.Product `json:"data"`
	pagination.Page
	Links   []pagination.Link `json:"links"`
	Filters Filters           `json:"filters"`
}

// ProductService defines the interface for product business logic
type ProductService interface {
	List(ctx context.Context, params ListParams) (*ProductPage, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Create(ctx context.Context, input domain.ProductInput, image *upload.File) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input domain.ProductInput, image *upload.File) (*domain.Product, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	productRepo repository.ProductRepository
	images      ImageStore
	folder      string
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewProductService creates a new instance of ProductService. Images are
// stored in folder under the upload root.
func NewProductService(
	productRepo repository.ProductRepository,
	images ImageStore,
	folder string,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo: productRepo,
		images:      images,
		folder:      folder,
		validate:    newValidator(),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// List returns one page of products matching params.Search, newest first
func (s *productService) List(ctx context.Context, params ListParams) (*ProductPage, error) {
	search := ""
	if params.Search != nil {
		search = strings.TrimSpace(*params.Search)
	}
	page := pagination.New(0, PageSize, params.Page)

	products, total, err := s.productRepo.Search(ctx, search, PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	page = pagination.New(total, PageSize, page.CurrentPage)
	for _, p := range products {
		s.withImageURL(p)
	}

	return &ProductPage{
		Data:    products,
		Page:    page,
		Links:   page.Links(params.Path, params.Query),
		Filters: Filters{Search: params.Search},
	}, nil
}

// Get retrieves a single product
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withImageURL(product), nil
}

// Create validates input, stores the optional image and persists a new product
func (s *productService) Create(ctx context.Context, input domain.ProductInput, image *upload.File) (*domain.Product, error) {
	price, err := s.validateInput(&input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	product := &domain.Product{
		ID:        uuid.New(),
		Status:    domain.ProductStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(product, input, price)

	if image != nil {
		path, err := s.storeImage(*image)
		if err != nil {
			return nil, err
		}
		product.Image = &path
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		s.discardImage(product.Image)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	return s.withImageURL(product), nil
}

// Update replaces the fields of an existing product. A new image replaces the
// previous one, which is removed from disk first.
func (s *productService) Update(ctx context.Context, id uuid.UUID, input domain.ProductInput, image *upload.File) (*domain.Product, error) {
	price, err := s.validateInput(&input)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applyInput(product, input, price)
	product.UpdatedAt = s.now()

	var stored *string
	if image != nil {
		s.discardImage(product.Image)

		path, err := s.storeImage(*image)
		if err != nil {
			return nil, err
		}
		stored = &path
		product.Image = stored
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		s.discardImage(stored)
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated", zap.String("product_id", product.ID.String()))
	return s.withImageURL(product), nil
}

// SetStatus changes only the status of a product
func (s *productService) SetStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error {
	if err := s.check(statusInput{Status: string(status)}); err != nil {
		return err
	}

	if err := s.productRepo.UpdateStatus(ctx, id, status, s.now()); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to update product status: %w", err)
	}

	s.logger.Info("Product status updated",
		zap.String("product_id", id.String()),
		zap.String("status", string(status)),
	)
	return nil
}

// Delete removes a product and its stored image
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.discardImage(product.Image)

	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

type statusInput struct {
	Status string `form:"status" validate:"required,oneof=active inactive"`
}

// check runs struct validation, converting failures into a *ValidationError
func (s *productService) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ValidationError{Errors: verrs}
		}
		return err
	}
	return nil
}

func (s *productService) validateInput(input *domain.ProductInput) (decimal.Decimal, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Price = strings.TrimSpace(input.Price)
	input.Category = strings.TrimSpace(input.Category)

	if err := s.check(input); err != nil {
		return decimal.Zero, err
	}

	// the price tag guarantees this parses
	return decimal.NewFromString(input.Price)
}

func (s *productService) storeImage(image upload.File) (string, error) {
	path, err := s.images.Store(s.folder, image, "")
	if err != nil {
		s.logger.Error("Failed to store image", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrImageStorage, err)
	}
	return path, nil
}

// discardImage removes a stored image; failures are logged and otherwise ignored
func (s *productService) discardImage(path *string) {
	if path == nil || *path == "" {
		return
	}
	if _, err := s.images.Delete(*path); err != nil {
		s.logger.Warn("Failed to delete image", zap.String("path", *path), zap.Error(err))
	}
}

func (s *productService) withImageURL(product *domain.Product) *domain.Product {
	product.ImageURL = nil
	if product.Image != nil {
		if u, ok := s.images.URLFor(*product.Image); ok {
			product.ImageURL = &u
		}
	}
	return product
}

func applyInput(product *domain.Product, input domain.ProductInput, price decimal.Decimal) {
	product.Name = input.Name
	product.Description = input.Description
	product.Price = price
	product.Category = nil
	if category := strings.TrimSpace(input.Category); category != "" {
		product.Category = &category
	}
	if input.Status != "" {
		product.Status = domain.ProductStatus(input.Status)
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// price: a decimal that fits NUMERIC(10, 2) without rounding
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		if err != nil || d.IsNegative() {
			return false
		}
		return d.Equal(d.Truncate(2)) && d.LessThan(maxPrice)
	})

	return v
}
