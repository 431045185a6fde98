package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/lborres/shopfront/core"
)

// CartKey is the storage key of the persisted cart.
const CartKey = "cart"

// CartLedger is the persisted cart: one line per product, quantity >= 1.
// Every mutation writes the whole ledger to storage before returning.
type CartLedger struct {
	storage  core.Storage
	notifier core.Notifier
	logger   *slog.Logger

	// held across persist so snapshots reach storage in mutation order
	mu    sync.Mutex
	lines []core.CartLine
}

func NewCartLedger(storage core.Storage, notifier core.Notifier, logger *slog.Logger) *CartLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartLedger{storage: storage, notifier: notifier, logger: logger}
}

// Load replaces the ledger with the persisted one. A missing key or
// unreadable data leaves the ledger empty.
func (c *CartLedger) Load(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil

	raw, err := c.storage.Get(ctx, CartKey)
	if err != nil {
		if !errors.Is(err, core.ErrStorageNotFound) {
			c.logger.Warn("failed to read stored cart", "err", err)
		}
		return
	}

	var stored []core.CartLine
	if err := json.Unmarshal(raw, &stored); err != nil {
		c.logger.Warn("stored cart is corrupt, starting empty", "err", err)
		return
	}

	lines, repaired := normalizeLines(stored)
	if repaired {
		c.logger.Warn("stored cart had invalid lines, repaired", "stored", len(stored), "kept", len(lines))
	}
	c.lines = lines
}

// AddItem adds qty of product, incrementing an existing line.
func (c *CartLedger) AddItem(ctx context.Context, product core.Product, qty int) error {
	if product.ID == 0 {
		return core.ErrInvalidProduct
	}
	if qty < 1 {
		return fmt.Errorf("%w: %d", core.ErrInvalidQuantity, qty)
	}

	c.mu.Lock()
	if i := c.indexLocked(product.ID); i >= 0 {
		c.lines[i].Quantity += qty
	} else {
		c.lines = append(c.lines, core.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			ImageURL:  product.ImageURL,
			Quantity:  qty,
		})
	}
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.notify(core.ToastSuccess, fmt.Sprintf(`"%s" added to cart!`, product.Name))
	return nil
}

// RemoveItem deletes the line for productID whatever its quantity.
// Removing an absent product is a no-op.
func (c *CartLedger) RemoveItem(ctx context.Context, productID int64) {
	c.mu.Lock()
	i := c.indexLocked(productID)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.lines = slices.Delete(c.lines, i, i+1)
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.notify(core.ToastInfo, "Item removed from cart.")
}

// SetQuantity sets the quantity of an existing line, clamped to at least 1.
func (c *CartLedger) SetQuantity(ctx context.Context, productID int64, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(productID)
	if i < 0 {
		return
	}
	c.lines[i].Quantity = max(1, qty)
	c.persistLocked(ctx)
}

// Clear empties the ledger.
func (c *CartLedger) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.persistLocked(ctx)
}

// Lines returns a copy of the lines in insertion order.
func (c *CartLedger) Lines() []core.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lines)
}

// Count is the sum of quantities.
func (c *CartLedger) Count() int {
	return c.Summary().Count
}

// Total is the sum of price times quantity.
func (c *CartLedger) Total() float64 {
	return c.Summary().Total
}

// Summary returns lines, count and total from one consistent read.
func (c *CartLedger) Summary() core.CartSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := core.CartSummary{Lines: slices.Clone(c.lines)}
	if summary.Lines == nil {
		summary.Lines = []core.CartLine{}
	}
	for _, l := range c.lines {
		summary.Count += l.Quantity
		summary.Total += l.Subtotal()
	}
	return summary
}

func (c *CartLedger) indexLocked(productID int64) int {
	return slices.IndexFunc(c.lines, func(l core.CartLine) bool { return l.ProductID == productID })
}

func (c *CartLedger) persistLocked(ctx context.Context) {
	lines := c.lines
	if lines == nil {
		lines = []core.CartLine{}
	}

	raw, err := json.Marshal(lines)
	if err != nil {
		c.logger.Error("failed to encode cart", "err", err)
		return
	}
	if err := c.storage.Set(ctx, CartKey, raw); err != nil {
		c.logger.Warn("failed to persist cart", "err", err)
	}
}

func (c *CartLedger) notify(level core.ToastLevel, msg string) {
	if c.notifier != nil {
		c.notifier.Notify(level, msg)
	}
}

// normalizeLines drops lines without a product, clamps quantities and
// merges duplicate products.
func normalizeLines(stored []core.CartLine) ([]core.CartLine, bool) {
	lines := make([]core.CartLine, 0, len(stored))
	repaired := false

	for _, l := range stored {
		if l.ProductID == 0 {
			repaired = true
			continue
		}
		if l.Quantity < 1 {
			l.Quantity = 1
			repaired = true
		}
		if i := slices.IndexFunc(lines, func(x core.CartLine) bool { return x.ProductID == l.ProductID }); i >= 0 {
			lines[i].Quantity += l.Quantity
			repaired = true
			continue
		}
		lines = append(lines, l)
	}

	return lines, repaired
}
