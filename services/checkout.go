package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lborres/shopfront/core"
)

// MyOrdersPath is where a completed checkout lands.
const MyOrdersPath = "/my-orders"

type ShippingInfo struct {
	FullName    string `json:"fullName"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
}

func (s ShippingInfo) complete() bool {
	return strings.TrimSpace(s.FullName) != "" &&
		strings.TrimSpace(s.Address) != "" &&
		strings.TrimSpace(s.PhoneNumber) != ""
}

// address renders the single-line shipping address the order API expects.
func (s ShippingInfo) address() string {
	return fmt.Sprintf("%s, %s, %s", s.FullName, s.Address, s.PhoneNumber)
}

// CheckoutResult is the outcome of a placed order. AwaitingPayment is set
// when a QR code must be paid before the cart is released.
type CheckoutResult struct {
	OrderID           int64  `json:"orderId"`
	QRCodeImageBase64 string `json:"qrCodeImageBase64,omitempty"`
	AwaitingPayment   bool   `json:"awaitingPayment"`
	Redirect          string `json:"redirect,omitempty"`
}

// Checkout turns the cart into an order for the signed-in user.
type Checkout struct {
	api      core.OrderAPI
	session  *SessionStore
	cart     *CartLedger
	notifier core.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	pending *CheckoutResult
}

func NewCheckout(api core.OrderAPI, session *SessionStore, cart *CartLedger, notifier core.Notifier, logger *slog.Logger) *Checkout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checkout{api: api, session: session, cart: cart, notifier: notifier, logger: logger}
}

// PlaceOrder submits the cart. Cash on delivery clears the cart at once;
// a QR code payment keeps it until CompleteQRPayment.
func (c *Checkout) PlaceOrder(ctx context.Context, info ShippingInfo, method core.PaymentMethod) (*CheckoutResult, error) {
	if c.session.Current().State != core.SessionAuthenticated {
		return nil, core.ErrNotAuthenticated
	}
	if method != core.PaymentCOD && method != core.PaymentQRCode {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidPaymentMethod, method)
	}
	if !info.complete() {
		return nil, core.ErrShippingInfoRequired
	}

	lines := c.cart.Lines()
	if len(lines) == 0 {
		c.notify(core.ToastInfo, core.UserMessage(core.ErrEmptyCart, ""))
		return nil, core.ErrEmptyCart
	}

	input := core.PlaceOrderInput{
		ShippingAddress: info.address(),
		PaymentMethod:   method,
		OrderItems:      make([]core.OrderItem, 0, len(lines)),
	}
	for _, l := range lines {
		input.OrderItems = append(input.OrderItems, core.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	placed, err := c.api.PlaceOrder(ctx, input)
	if err != nil {
		c.logger.Error("failed to place order", "err", err, "items", len(lines))
		c.notify(core.ToastError, core.UserMessage(err, "Failed to place order."))
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	result := &CheckoutResult{OrderID: placed.OrderID}

	if method == core.PaymentQRCode && placed.QRCodeImageBase64 != "" {
		result.QRCodeImageBase64 = placed.QRCodeImageBase64
		result.AwaitingPayment = true

		c.mu.Lock()
		c.pending = result
		c.mu.Unlock()

		c.logger.Info("order awaiting QR payment", "orderId", placed.OrderID)
		return result, nil
	}

	c.notify(core.ToastSuccess, fmt.Sprintf("Order #%d placed successfully!", placed.OrderID))
	c.cart.Clear(ctx)
	result.Redirect = MyOrdersPath

	c.logger.Info("order placed", "orderId", placed.OrderID, "paymentMethod", method)
	return result, nil
}

// PendingPayment returns the order awaiting QR payment, if any.
func (c *Checkout) PendingPayment() *CheckoutResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

// CompleteQRPayment closes the QR step: the cart is cleared and the
// user goes to their orders.
func (c *Checkout) CompleteQRPayment(ctx context.Context) string {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()

	c.cart.Clear(ctx)
	return MyOrdersPath
}

func (c *Checkout) notify(level core.ToastLevel, msg string) {
	if c.notifier != nil && msg != "" {
		c.notifier.Notify(level, msg)
	}
}
