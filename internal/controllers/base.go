package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap/zapcore"

	"github.com/drstein77/storefront/internal/cart"
	"github.com/drstein77/storefront/internal/catalog"
	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/storage"
)

// CartEngine is the surface of the cart the handlers translate user intents into.
type CartEngine interface {
	AddItem(ctx context.Context, productID string) (*models.CartLine, bool, error)
	IncrementAmount(ctx context.Context, id string) (int, error)
	DecrementAmount(ctx context.Context, id string) (int, bool, error)
	RemoveItem(ctx context.Context, id string)
	Clear(ctx context.Context)
	Totals() models.CartTotals
	Lines() []models.CartLine
}

// CatalogLoader fetches the product catalog from its external source.
type CatalogLoader interface {
	Load(ctx context.Context) ([]models.Product, error)
}

// Store gives the handlers access to the cached catalog snapshot.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Log interface for logging
type Log interface {
	Info(string, ...zapcore.Field)
	Warn(string, ...zapcore.Field)
	Error(string, ...zapcore.Field)
}

// BaseController struct for handling requests
type BaseController struct {
	ctx    context.Context
	engine CartEngine
	loader CatalogLoader
	store  Store
	log    Log
}

// NewBaseController creates a new BaseController instance
func NewBaseController(ctx context.Context, engine CartEngine, loader CatalogLoader, store Store, log Log) *BaseController {
	instance := &BaseController{
		ctx:    ctx,
		engine: engine,
		loader: loader,
		store:  store,
		log:    log,
	}

	return instance
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/api/v0/products", h.getProducts)
	r.Post("/api/v0/products/refresh", h.refreshProducts)

	r.Get("/api/v0/cart", h.getCart)
	r.Post("/api/v0/cart/items/{id}", h.addItem)
	r.Post("/api/v0/cart/items/{id}/increment", h.incrementAmount)
	r.Post("/api/v0/cart/items/{id}/decrement", h.decrementAmount)
	r.Delete("/api/v0/cart/items/{id}", h.removeItem)
	r.Delete("/api/v0/cart", h.clearCart)

	return r
}

type cartResponse struct {
	Lines  []models.CartLine `json:"lines"`
	Totals models.CartTotals `json:"totals"`
}

type mutationResponse struct {
	Result string            `json:"result"`
	Line   *models.CartLine  `json:"line,omitempty"`
	ID     string            `json:"id,omitempty"`
	Amount *int              `json:"amount,omitempty"`
	Totals models.CartTotals `json:"totals"`
}

func (h *BaseController) getProducts(w http.ResponseWriter, r *http.Request) {
	products := []models.Product{}

	value, err := h.store.Get(r.Context(), storage.KeyProducts)
	if err == nil {
		if err := json.Unmarshal(value, &products); err != nil {
			h.log.Warn("cached catalog is malformed")
			products = []models.Product{}
		}
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *BaseController) refreshProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.loader.Load(r.Context())
	if err != nil {
		if errors.Is(err, catalog.ErrCatalogUnavailable) {
			h.writeError(w, http.StatusBadGateway, "catalog unavailable")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to refresh catalog")
		return
	}

	value, err := json.Marshal(products)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to encode catalog")
		return
	}
	if err := h.store.Set(r.Context(), storage.KeyProducts, value); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to cache catalog")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *BaseController) getCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, cartResponse{
		Lines:  h.engine.Lines(),
		Totals: h.engine.Totals(),
	})
}

func (h *BaseController) addItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	line, created, err := h.engine.AddItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, cart.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "unknown product")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	status := http.StatusOK
	result := "line_exists"
	if created {
		status = http.StatusCreated
		result = "line_added"
	}
	h.writeJSON(w, status, mutationResponse{
		Result: result,
		Line:   line,
		Totals: h.engine.Totals(),
	})
}

func (h *BaseController) incrementAmount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	amount, err := h.engine.IncrementAmount(r.Context(), id)
	if err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			h.writeError(w, http.StatusNotFound, "cart line not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to increment amount")
		return
	}

	h.writeJSON(w, http.StatusOK, mutationResponse{
		Result: "line_updated",
		ID:     id,
		Amount: &amount,
		Totals: h.engine.Totals(),
	})
}

func (h *BaseController) decrementAmount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	amount, removed, err := h.engine.DecrementAmount(r.Context(), id)
	if err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			h.writeError(w, http.StatusNotFound, "cart line not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to decrement amount")
		return
	}

	// The distinct removal signal tells the consumer to delete its line
	// representation instead of updating a counter.
	result := "line_updated"
	if removed {
		result = "line_removed"
	}
	h.writeJSON(w, http.StatusOK, mutationResponse{
		Result: result,
		ID:     id,
		Amount: &amount,
		Totals: h.engine.Totals(),
	})
}

func (h *BaseController) removeItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.engine.RemoveItem(r.Context(), id)

	// The id comes back so the consumer can re-enable its add affordance.
	h.writeJSON(w, http.StatusOK, mutationResponse{
		Result: "line_removed",
		ID:     id,
		Totals: h.engine.Totals(),
	})
}

func (h *BaseController) clearCart(w http.ResponseWriter, r *http.Request) {
	h.engine.Clear(r.Context())

	h.writeJSON(w, http.StatusOK, cartResponse{
		Lines:  []models.CartLine{},
		Totals: h.engine.Totals(),
	})
}

func (h *BaseController) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response")
	}
}

func (h *BaseController) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
