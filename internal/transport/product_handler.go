package transport

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"product-catalog/internal/domain"
	"product-catalog/internal/middleware"
	"product-catalog/internal/pagination"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"
	"product-catalog/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

const (
	// PictureField is the multipart field carrying the product image
	PictureField = "picture"

	// bytes held in memory while parsing a multipart form
	formMemory = 1 << 20

	// filetype inspects at most this many leading bytes
	sniffLen = 262
)

var errNotImage = errors.New("uploaded file is not an image")

// StatusRequest represents the status toggle payload
type StatusRequest struct {
	Status string `json:"status"`
}

// MessageResponse is returned by write endpoints
type MessageResponse struct {
	Message string          `json:"message"`
	Product *domain.Product `json:"product,omitempty"`
}

// ProductHandler handles HTTP requests for product operations
type ProductHandler struct {
	productService service.ProductService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler. Request bodies of write
// endpoints are capped at maxUploadBytes.
func NewProductHandler(productService service.ProductService, maxUploadBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes. writeMiddleware wraps the
// routes that change the catalog.
func (h *ProductHandler) RegisterRoutes(r chi.Router, writeMiddleware ...func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(writeMiddleware...)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			// HTML forms cannot send PUT
			r.Post("/{id}", h.Update)
			r.Put("/{id}/status", h.SetStatus)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles the paginated, searchable product listing
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var search *string
	if query.Has("search") {
		term := query.Get("search")
		search = &term
	}

	page, err := h.productService.List(r.Context(), service.ListParams{
		Search: search,
		Page:   pagination.ParsePage(query.Get("page")),
		Path:   r.URL.Path,
		Query:  query,
	})
	if err != nil {
		h.respondWithServiceError(w, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// Get handles retrieving a single product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, err, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Create handles product creation from a form submission
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, image, ok := h.readProductForm(w, r)
	if !ok {
		return
	}
	if image != nil {
		defer os.Remove(image.TempPath)
	}

	product, err := h.productService.Create(r.Context(), input, image)
	if err != nil {
		h.respondWithServiceError(w, err, "failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, MessageResponse{
		Message: "Product created successfully.",
		Product: product,
	})
}

// Update handles editing a product, optionally replacing its image
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	input, image, ok := h.readProductForm(w, r)
	if !ok {
		return
	}
	if image != nil {
		defer os.Remove(image.TempPath)
	}

	product, err := h.productService.Update(r.Context(), id, input, image)
	if err != nil {
		h.respondWithServiceError(w, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{
		Message: "Product updated successfully.",
		Product: product,
	})
}

// SetStatus handles the active/inactive toggle
func (h *ProductHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.logger.Debug("Status payload rejected", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.productService.SetStatus(r.Context(), id, domain.ProductStatus(req.Status)); err != nil {
		h.respondWithServiceError(w, err, "failed to update product status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Product status updated successfully."})
}

// Delete handles removing a product and its image
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		h.respondWithServiceError(w, err, "failed to delete product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Product deleted successfully."})
}

// productID parses the {id} URL parameter. Anything that is not a UUID cannot
// name a product, so it is reported as not found.
func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProductHandler) respondWithServiceError(w http.ResponseWriter, err error, message string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrImageStorage):
		h.logger.Error("Image storage failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to store image")
	default:
		h.logger.Error(message, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, message)
	}
}

// readProductForm parses a multipart or urlencoded product form. The picture,
// when present, is spooled to a temporary file the caller must remove. On
// failure the response has already been written.
func (h *ProductHandler) readProductForm(w http.ResponseWriter, r *http.Request) (domain.ProductInput, *upload.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var err error
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(formMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return domain.ProductInput{}, nil, false
		}
		h.logger.Debug("Form parsing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid form data")
		return domain.ProductInput{}, nil, false
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	input := domain.ProductInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Price:       r.PostFormValue("price"),
		Category:    r.PostFormValue("category"),
		Status:      r.PostFormValue("status"),
	}

	image, err := spoolPicture(r)
	if err != nil {
		if errors.Is(err, errNotImage) {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{{
				Field:   PictureField,
				Message: "The " + PictureField + " must be an image.",
			}})
			return domain.ProductInput{}, nil, false
		}
		h.logger.Error("Failed to read uploaded picture", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to read uploaded file")
		return domain.ProductInput{}, nil, false
	}

	return input, image, true
}

// spoolPicture copies the picture part into a temporary file after checking
// its leading bytes are an image. It returns nil when no picture was sent.
func spoolPicture(r *http.Request) (*upload.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	part, header, err := r.FormFile(PictureField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer part.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(part, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]

	if !filetype.IsImage(head) {
		return nil, errNotImage
	}

	tmp, err := os.CreateTemp("", "product-upload-*")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(head), part)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	name := filepath.Base(header.Filename)
	if filepath.Ext(name) == "" {
		if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
			name += "." + kind.Extension
		}
	}

	return &upload.File{OriginalName: name, TempPath: tmp.Name()}, nil
}
