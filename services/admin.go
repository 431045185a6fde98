package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lborres/shopfront/core"
)

const (
	// MaxImageSize is the largest marketing image accepted for upload.
	MaxImageSize = 5 << 20

	DefaultDashboardPeriod = "last7days"
	marketingUploadKind    = "marketing"
)

var dashboardPeriods = map[string]bool{
	"last7days":  true,
	"last30days": true,
	"month":      true,
	"year":       true,
}

// AdminConsole runs the admin console operations. Every mutation reports
// its outcome as a notice; failures are also returned.
type AdminConsole struct {
	api      core.AdminAPI
	notifier core.Notifier
	logger   *slog.Logger
}

func NewAdminConsole(api core.AdminAPI, notifier core.Notifier, logger *slog.Logger) *AdminConsole {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminConsole{api: api, notifier: notifier, logger: logger}
}

// report surfaces the outcome of op: success on nil, otherwise the
// server's message or fallback.
func (a *AdminConsole) report(op string, err error, success, fallback string) error {
	if err != nil {
		a.logger.Error("admin operation failed", "op", op, "err", err)
		a.notify(core.ToastError, core.UserMessage(err, fallback))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if success != "" {
		a.notify(core.ToastSuccess, success)
	}
	return nil
}

func (a *AdminConsole) notify(level core.ToastLevel, msg string) {
	if a.notifier != nil {
		a.notifier.Notify(level, msg)
	}
}

// ---- categories ----

func (a *AdminConsole) Categories(ctx context.Context) ([]core.Category, error) {
	cats, err := a.api.ListAdminCategories(ctx)
	return cats, a.report("list categories", err, "", "Failed to fetch categories.")
}

// SaveCategory creates the category when id is 0, otherwise renames it.
func (a *AdminConsole) SaveCategory(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrNameRequired
	}
	if id == 0 {
		_, err := a.api.CreateCategory(ctx, name)
		return a.report("create category", err, "Category added successfully!", "Failed to save category.")
	}
	err := a.api.UpdateCategory(ctx, id, name)
	return a.report("update category", err, "Category updated successfully!", "Failed to save category.")
}

func (a *AdminConsole) DeleteCategory(ctx context.Context, id int64) error {
	err := a.api.DeleteCategory(ctx, id)
	return a.report("delete category", err, "Category deleted successfully!", "Failed to delete category. It may contain products.")
}

// ---- products ----

func (a *AdminConsole) Products(ctx context.Context) ([]core.Product, error) {
	products, err := a.api.ListAdminProducts(ctx)
	return products, a.report("list products", err, "", "Failed to fetch products.")
}

// SaveProduct creates the product when p.ID is 0, otherwise updates it.
func (a *AdminConsole) SaveProduct(ctx context.Context, p core.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return core.ErrNameRequired
	}
	if p.ID == 0 {
		_, err := a.api.CreateProduct(ctx, p)
		return a.report("create product", err, "Product added successfully!", "Failed to save product.")
	}
	err := a.api.UpdateProduct(ctx, p)
	return a.report("update product", err, "Product updated successfully!", "Failed to save product.")
}

func (a *AdminConsole) DeleteProduct(ctx context.Context, id int64) error {
	err := a.api.DeleteProduct(ctx, id)
	return a.report("delete product", err, "Product deleted successfully!", "Failed to delete product.")
}

// ---- users ----

func (a *AdminConsole) Users(ctx context.Context) ([]core.User, error) {
	users, err := a.api.ListUsers(ctx)
	return users, a.report("list users", err, "", "Failed to fetch users.")
}

func (a *AdminConsole) Roles(ctx context.Context) ([]core.Role, error) {
	roles, err := a.api.ListRoles(ctx)
	return roles, a.report("list roles", err, "", "Failed to fetch roles")
}

// SaveUser creates the user when u.ID is empty, otherwise updates it. New
// users need a password.
func (a *AdminConsole) SaveUser(ctx context.Context, u core.User) error {
	if u.ID == "" {
		if u.Password == "" {
			a.notify(core.ToastError, core.UserMessage(core.ErrUserPasswordRequired, ""))
			return core.ErrUserPasswordRequired
		}
		_, err := a.api.CreateUser(ctx, u)
		return a.report("create user", err, "User created successfully!", "Failed to save user.")
	}
	err := a.api.UpdateUser(ctx, u)
	return a.report("update user", err, "User updated successfully!", "Failed to save user.")
}

func (a *AdminConsole) DeleteUser(ctx context.Context, id string) error {
	err := a.api.DeleteUser(ctx, id)
	return a.report("delete user", err, "User deleted successfully!", "Failed to delete user.")
}

// ---- orders ----

func (a *AdminConsole) Orders(ctx context.Context) ([]core.Order, error) {
	orders, err := a.api.ListAllOrders(ctx)
	return orders, a.report("list orders", err, "", "Could not fetch orders.")
}

func (a *AdminConsole) UpdateOrderStatus(ctx context.Context, id int64, status core.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidOrderStatus, status)
	}
	err := a.api.UpdateOrderStatus(ctx, id, status)
	return a.report("update order status", err,
		fmt.Sprintf("Order #%d status updated to %s", id, status), "Failed to update order status.")
}

// ---- dashboard ----

// Dashboard loads stats and the revenue chart for period concurrently.
func (a *AdminConsole) Dashboard(ctx context.Context, period string) (*core.Dashboard, error) {
	if period == "" {
		period = DefaultDashboardPeriod
	}
	if !dashboardPeriods[period] {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidPeriod, period)
	}

	dash := &core.Dashboard{Period: period}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := a.api.DashboardStats(gctx, period)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		dash.Stats = *stats
		return nil
	})
	g.Go(func() error {
		revenue, err := a.api.RevenueChart(gctx, period)
		if err != nil {
			return fmt.Errorf("revenue chart: %w", err)
		}
		dash.Revenue = revenue
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, a.report("load dashboard", err, "", "Failed to fetch dashboard data.")
	}
	if dash.Revenue == nil {
		dash.Revenue = []core.RevenuePoint{}
	}
	return dash, nil
}

// ---- marketing ----

// UploadImage uploads a marketing image of the given size and returns its
// public URL. Images over MaxImageSize are refused before any request.
func (a *AdminConsole) UploadImage(ctx context.Context, filename string, size int64, r io.Reader) (string, error) {
	if size > MaxImageSize {
		a.notify(core.ToastError, core.UserMessage(core.ErrImageTooLarge, ""))
		return "", core.ErrImageTooLarge
	}

	// size is only what the caller declared; the stream decides.
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		a.notify(core.ToastError, "Image upload failed.")
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > MaxImageSize {
		a.notify(core.ToastError, core.UserMessage(core.ErrImageTooLarge, ""))
		return "", core.ErrImageTooLarge
	}

	url, err := a.api.UploadImage(ctx, marketingUploadKind, filename, bytes.NewReader(data))
	if err := a.report("upload image", err, "Image uploaded successfully!", "Image upload failed."); err != nil {
		return "", err
	}
	return url, nil
}

func (a *AdminConsole) SendNewsletter(ctx context.Context, n core.Newsletter) error {
	if strings.TrimSpace(n.Subject) == "" || strings.TrimSpace(n.Body) == "" {
		a.notify(core.ToastError, core.UserMessage(core.ErrNewsletterIncomplete, ""))
		return core.ErrNewsletterIncomplete
	}
	err := a.api.SendNewsletter(ctx, n)
	return a.report("send newsletter", err, "Newsletter sent successfully!", "Failed to send newsletter.")
}

func (a *AdminConsole) NewsletterHistory(ctx context.Context) ([]core.Newsletter, error) {
	history, err := a.api.NewsletterHistory(ctx)
	return history, a.report("list newsletters", err, "", "Could not fetch newsletter history.")
}
