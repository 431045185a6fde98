package rest

import (
	"context"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/client"

	"github.com/lborres/shopfront/core"
)

type nameBody struct {
	Name string `json:"name"`
}

type statusBody struct {
	NewStatus core.OrderStatus `json:"newStatus"`
}

type uploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

// ---- categories ----

func (c *Client) ListAdminCategories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	if err := c.do(ctx, fiber.MethodGet, "/admin/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) (*core.Category, error) {
	out := core.Category{Name: name}
	if err := c.do(ctx, fiber.MethodPost, "/admin/categories", nameBody{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, name string) error {
	return c.do(ctx, fiber.MethodPut, fmt.Sprintf("/admin/categories/%d", id), nameBody{Name: name}, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, fiber.MethodDelete, fmt.Sprintf("/admin/categories/%d", id), nil, nil)
}

// ---- products ----

func (c *Client) ListAdminProducts(ctx context.Context) ([]core.Product, error) {
	var out []core.Product
	if err := c.do(ctx, fiber.MethodGet, "/admin/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, p core.Product) (*core.Product, error) {
	out := p
	if err := c.do(ctx, fiber.MethodPost, "/admin/products", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, p core.Product) error {
	return c.do(ctx, fiber.MethodPut, fmt.Sprintf("/admin/products/%d", p.ID), p, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, fiber.MethodDelete, fmt.Sprintf("/admin/products/%d", id), nil, nil)
}

// ---- users ----

func (c *Client) ListUsers(ctx context.Context) ([]core.User, error) {
	var out []core.User
	if err := c.do(ctx, fiber.MethodGet, "/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListRoles(ctx context.Context) ([]core.Role, error) {
	var out []core.Role
	if err := c.do(ctx, fiber.MethodGet, "/admin/users/roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateUser(ctx context.Context, u core.User) (*core.User, error) {
	out := u
	if err := c.do(ctx, fiber.MethodPost, "/admin/users", u, &out); err != nil {
		return nil, err
	}
	out.Password = ""
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, u core.User) error {
	return c.do(ctx, fiber.MethodPut, "/admin/users/"+u.ID, u, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, fiber.MethodDelete, "/admin/users/"+id, nil, nil)
}

// ---- orders ----

func (c *Client) ListAllOrders(ctx context.Context) ([]core.Order, error) {
	var out []core.Order
	if err := c.do(ctx, fiber.MethodGet, "/admin/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status core.OrderStatus) error {
	return c.do(ctx, fiber.MethodPut, fmt.Sprintf("/admin/orders/%d/status", id), statusBody{NewStatus: status}, nil)
}

// ---- dashboard ----

func (c *Client) DashboardStats(ctx context.Context, period string) (*core.DashboardStats, error) {
	var out core.DashboardStats
	if err := c.do(ctx, fiber.MethodGet, "/admin/dashboard/stats", nil, &out, withParam("period", period)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RevenueChart(ctx context.Context, period string) ([]core.RevenuePoint, error) {
	var out []core.RevenuePoint
	if err := c.do(ctx, fiber.MethodGet, "/admin/dashboard/revenue-chart", nil, &out, withParam("period", period)); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- marketing ----

// UploadImage posts r as the multipart field "file" and returns the public
// URL of the stored image.
func (c *Client) UploadImage(ctx context.Context, kind, filename string, r io.Reader) (string, error) {
	file := client.AcquireFile(
		client.SetFileName(filename),
		client.SetFileFieldName("file"),
		client.SetFileReader(io.NopCloser(r)),
	)

	var out uploadResponse
	if err := c.do(ctx, fiber.MethodPost, "/uploads", nil, &out, withParam("type", kind), withFile(file)); err != nil {
		return "", err
	}
	if out.ImageURL == "" {
		return "", fmt.Errorf("upload response carried no image url")
	}
	return out.ImageURL, nil
}

func (c *Client) SendNewsletter(ctx context.Context, n core.Newsletter) error {
	body := struct {
		Subject  string `json:"subject"`
		Body     string `json:"body"`
		ImageURL string `json:"imageUrl,omitempty"`
	}{n.Subject, n.Body, n.ImageURL}
	return c.do(ctx, fiber.MethodPost, "/admin/marketing/send-newsletter", body, nil)
}

func (c *Client) NewsletterHistory(ctx context.Context) ([]core.Newsletter, error) {
	var out []core.Newsletter
	if err := c.do(ctx, fiber.MethodGet, "/admin/marketing/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
