package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/shopfront/core"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Client) Login(ctx context.Context, identity, secret string) (string, error) {
	var out loginResponse
	if err := c.do(ctx, fiber.MethodPost, "/accounts/login", loginRequest{Username: identity, Password: secret}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: login response carried no token", core.ErrDecode)
	}
	return out.Token, nil
}

// SearchProducts accepts either a bare product array or a paged object.
func (c *Client) SearchProducts(ctx context.Context, filter core.FilterState) (*core.ProductPage, error) {
	opts := []option{
		withParam("pageNumber", strconv.Itoa(max(1, filter.PageNumber))),
	}
	if filter.PageSize > 0 {
		opts = append(opts, withParam("pageSize", strconv.Itoa(filter.PageSize)))
	}
	if filter.SearchTerm != "" {
		opts = append(opts, withParam("searchTerm", filter.SearchTerm))
	}
	if filter.CategoryID > 0 {
		opts = append(opts, withParam("categoryId", strconv.FormatInt(filter.CategoryID, 10)))
	}
	if filter.SortKey != "" {
		opts = append(opts, withParam("sortBy", filter.SortKey))
	}

	var raw json.RawMessage
	if err := c.do(ctx, fiber.MethodGet, "/products", nil, &raw, opts...); err != nil {
		return nil, err
	}
	return decodeProductPage(raw, filter)
}

func decodeProductPage(raw json.RawMessage, filter core.FilterState) (*core.ProductPage, error) {
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '[' {
		var items []core.Product
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode products: %w", err)
		}
		return &core.ProductPage{
			Items:      items,
			PageNumber: max(1, filter.PageNumber),
			PageSize:   len(items),
			TotalCount: len(items),
			TotalPages: 1,
		}, nil
	}

	page := &core.ProductPage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, page); err != nil {
			return nil, fmt.Errorf("failed to decode product page: %w", err)
		}
	}
	if page.Items == nil {
		page.Items = []core.Product{}
	}
	return page, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*core.Product, error) {
	var out core.Product
	if err := c.do(ctx, fiber.MethodGet, fmt.Sprintf("/products/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	if err := c.do(ctx, fiber.MethodGet, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListNotifications(ctx context.Context) ([]core.Notification, error) {
	var out []core.Notification
	if err := c.do(ctx, fiber.MethodGet, "/admin/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationsRead posts the id batch as a JSON array.
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []int64) error {
	return c.do(ctx, fiber.MethodPost, "/admin/notifications/mark-as-read", ids, nil)
}

func (c *Client) PlaceOrder(ctx context.Context, input core.PlaceOrderInput) (*core.PlaceOrderResult, error) {
	var out core.PlaceOrderResult
	if err := c.do(ctx, fiber.MethodPost, "/orders", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]core.Order, error) {
	var out []core.Order
	if err := c.do(ctx, fiber.MethodGet, "/orders/my-orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*core.Order, error) {
	var out core.Order
	if err := c.do(ctx, fiber.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProfile(ctx context.Context) (*core.Profile, error) {
	var out core.Profile
	if err := c.do(ctx, fiber.MethodGet, "/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, p core.Profile) error {
	return c.do(ctx, fiber.MethodPut, "/profile", p, nil)
}

func (c *Client) ChangePassword(ctx context.Context, input core.ChangePasswordInput) error {
	return c.do(ctx, fiber.MethodPost, "/profile/change-password", input, nil)
}
