package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lborres/shopfront/core"
)

// MinPasswordLength is the shortest new password accepted client-side.
const MinPasswordLength = 6

// ChangePasswordRequest carries the confirmation field that never leaves
// the client.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AccountBackend is the REST surface the account operations need.
type AccountBackend interface {
	core.AccountAPI
	core.OrderAPI
}

// Account runs the signed-in user's own operations.
type Account struct {
	api      AccountBackend
	session  *SessionStore
	notifier core.Notifier
	logger   *slog.Logger
}

func NewAccount(api AccountBackend, session *SessionStore, notifier core.Notifier, logger *slog.Logger) *Account {
	if logger == nil {
		logger = slog.Default()
	}
	return &Account{api: api, session: session, notifier: notifier, logger: logger}
}

func (a *Account) requireSession() error {
	if a.session.Current().State != core.SessionAuthenticated {
		return core.ErrNotAuthenticated
	}
	return nil
}

func (a *Account) fail(op string, err error, fallback string) error {
	a.logger.Error("account operation failed", "op", op, "err", err)
	if a.notifier != nil {
		a.notifier.Notify(core.ToastError, core.UserMessage(err, fallback))
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (a *Account) succeed(msg string) {
	if a.notifier != nil {
		a.notifier.Notify(core.ToastSuccess, msg)
	}
}

func (a *Account) Profile(ctx context.Context) (*core.Profile, error) {
	if err := a.requireSession(); err != nil {
		return nil, err
	}
	p, err := a.api.GetProfile(ctx)
	if err != nil {
		return nil, a.fail("load profile", err, "Failed to load your profile information.")
	}
	return p, nil
}

func (a *Account) UpdateProfile(ctx context.Context, p core.Profile) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if err := a.api.UpdateProfile(ctx, p); err != nil {
		return a.fail("update profile", err, "Failed to update profile.")
	}
	a.succeed("Profile updated successfully!")
	return nil
}

// ChangePassword checks the confirmation and minimum length before
// calling the API.
func (a *Account) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if err := a.requireSession(); err != nil {
		return err
	}

	var invalid error
	switch {
	case req.NewPassword != req.ConfirmPassword:
		invalid = core.ErrPasswordMismatch
	case len(req.NewPassword) < MinPasswordLength:
		invalid = core.ErrPasswordTooShort
	}
	if invalid != nil {
		if a.notifier != nil {
			a.notifier.Notify(core.ToastError, core.UserMessage(invalid, ""))
		}
		return invalid
	}

	err := a.api.ChangePassword(ctx, core.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return a.fail("change password", err, "Failed to change password. Please check your current password.")
	}
	a.succeed("Password changed successfully!")
	return nil
}

func (a *Account) MyOrders(ctx context.Context) ([]core.Order, error) {
	if err := a.requireSession(); err != nil {
		return nil, err
	}
	orders, err := a.api.MyOrders(ctx)
	if err != nil {
		return nil, a.fail("list orders", err, "Could not fetch your orders.")
	}
	return orders, nil
}

func (a *Account) Order(ctx context.Context, id int64) (*core.Order, error) {
	if err := a.requireSession(); err != nil {
		return nil, err
	}
	order, err := a.api.GetOrder(ctx, id)
	if err != nil {
		return nil, a.fail("load order", err, "Could not fetch order details.")
	}
	return order, nil
}
