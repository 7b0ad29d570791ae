package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/storage"
)

var (
	// ErrLineNotFound indicates a mutation referenced an id with no cart line.
	// Callers treat it as stale UI state, not corrupt data.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrProductNotFound indicates AddItem could not resolve the product id
	// against the cached catalog.
	ErrProductNotFound = errors.New("product not found")
)

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Store is the capability the engine needs from the persistent store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Engine owns the in-memory cart state. Lines are insertion-ordered by first
// add, hold at most one line per product id, and every amount is >= 1.
// All operations take the engine mutex; the HTTP layer calls concurrently.
type Engine struct {
	mx    sync.Mutex
	lines []models.CartLine

	store Store
	log   Log
}

func NewEngine(store Store, log Log) *Engine {
	return &Engine{
		store: store,
		log:   log,
	}
}

// Hydrate replaces the in-memory state with the persisted cart. An absent or
// malformed value yields an empty cart; lines violating invariants are
// dropped (amount < 1, or a duplicate id where the first occurrence wins).
func (e *Engine) Hydrate(ctx context.Context) {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.lines = nil

	value, err := e.store.Get(ctx, storage.KeyCart)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.log.Warn("cannot read persisted cart", zap.Error(err))
		}
		return
	}

	var persisted []models.CartLine
	if err := json.Unmarshal(value, &persisted); err != nil {
		e.log.Warn("persisted cart is malformed, starting empty", zap.Error(err))
		return
	}

	seen := make(map[string]bool, len(persisted))
	for _, line := range persisted {
		if line.ID == "" || line.Amount < 1 || seen[line.ID] {
			e.log.Warn("dropping invalid persisted cart line",
				zap.String("id", line.ID), zap.Int("amount", line.Amount))
			continue
		}
		seen[line.ID] = true
		e.lines = append(e.lines, line)
	}
}

// AddItem creates a line with amount 1 from a snapshot of the product's
// title, price and image taken now; later catalog changes do not touch the
// line. Adding an id already in the cart is a no-op returning the existing
// line and created=false: growing a quantity goes through IncrementAmount.
func (e *Engine) AddItem(ctx context.Context, productID string) (*models.CartLine, bool, error) {
	e.mx.Lock()
	defer e.mx.Unlock()

	if i := e.index(productID); i >= 0 {
		line := e.lines[i]
		return &line, false, nil
	}

	product, err := e.lookupProduct(ctx, productID)
	if err != nil {
		e.log.Warn("add item for unknown product", zap.String("id", productID))
		return nil, false, ErrProductNotFound
	}

	line := models.CartLine{
		ID:     product.ID,
		Title:  product.Title,
		Price:  product.Price,
		Image:  product.Image,
		Amount: 1,
	}
	e.lines = append(e.lines, line)
	e.persist(ctx)

	return &line, true, nil
}

// IncrementAmount raises the line's amount by one and returns the new amount.
func (e *Engine) IncrementAmount(ctx context.Context, id string) (int, error) {
	e.mx.Lock()
	defer e.mx.Unlock()

	i := e.index(id)
	if i < 0 {
		e.log.Warn("increment for unknown cart line", zap.String("id", id))
		return 0, ErrLineNotFound
	}

	e.lines[i].Amount++
	e.persist(ctx)

	return e.lines[i].Amount, nil
}

// DecrementAmount lowers the line's amount by one. When the amount reaches
// zero the line is removed entirely and removed reports true, so the caller
// can delete its representation instead of updating a counter.
func (e *Engine) DecrementAmount(ctx context.Context, id string) (amount int, removed bool, err error) {
	e.mx.Lock()
	defer e.mx.Unlock()

	i := e.index(id)
	if i < 0 {
		e.log.Warn("decrement for unknown cart line", zap.String("id", id))
		return 0, false, ErrLineNotFound
	}

	e.lines[i].Amount--
	if e.lines[i].Amount > 0 {
		amount = e.lines[i].Amount
	} else {
		e.lines = append(e.lines[:i], e.lines[i+1:]...)
		removed = true
	}
	e.persist(ctx)

	return amount, removed, nil
}

// RemoveItem removes the line unconditionally. An absent id is a no-op.
func (e *Engine) RemoveItem(ctx context.Context, id string) {
	e.mx.Lock()
	defer e.mx.Unlock()

	if i := e.index(id); i >= 0 {
		e.lines = append(e.lines[:i], e.lines[i+1:]...)
	}
	e.persist(ctx)
}

// Clear removes all lines and persists the empty cart.
func (e *Engine) Clear(ctx context.Context) {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.lines = nil
	e.persist(ctx)
}

// Totals derives the aggregate over the current state. Amounts accumulate as
// integers; the monetary sum is exact and rounded to two decimals at the end.
func (e *Engine) Totals() models.CartTotals {
	e.mx.Lock()
	defer e.mx.Unlock()

	var totals models.CartTotals
	var due float64
	for _, line := range e.lines {
		totals.ItemCount += line.Amount
		due += line.Price * float64(line.Amount)
	}
	totals.AmountDue = models.Round2(due)

	return totals
}

// Lines returns a copy of the current cart lines in insertion order.
func (e *Engine) Lines() []models.CartLine {
	e.mx.Lock()
	defer e.mx.Unlock()

	lines := make([]models.CartLine, len(e.lines))
	copy(lines, e.lines)
	return lines
}

func (e *Engine) index(id string) int {
	for i := range e.lines {
		if e.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) lookupProduct(ctx context.Context, id string) (models.Product, error) {
	value, err := e.store.Get(ctx, storage.KeyProducts)
	if err != nil {
		return models.Product{}, err
	}

	var products []models.Product
	if err := json.Unmarshal(value, &products); err != nil {
		return models.Product{}, err
	}

	for _, product := range products {
		if product.ID == id {
			return product, nil
		}
	}
	return models.Product{}, storage.ErrNotFound
}

// persist writes the cart after a mutation. The store itself degrades rather
// than failing, so an error here is logged and the session continues.
func (e *Engine) persist(ctx context.Context) {
	lines := e.lines
	if lines == nil {
		lines = []models.CartLine{}
	}
	value, err := json.Marshal(lines)
	if err != nil {
		e.log.Error("cannot marshal cart", zap.Error(err))
		return
	}
	if err := e.store.Set(ctx, storage.KeyCart, value); err != nil {
		e.log.Warn("cannot persist cart", zap.Error(err))
	}
}
