package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lborres/shopfront/core"
)

type recorded struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	Body          string
}

type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recorded
}

// newFakeServer serves routes keyed by "METHOD /path" and records every request.
func newFakeServer(t *testing.T, routes map[string]http.HandlerFunc) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
		}
		fs.mu.Lock()
		fs.requests = append(fs.requests, recorded{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get(HeaderRequestID),
			Body:          string(body),
		})
		fs.mu.Unlock()

		handler, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) last(t *testing.T) recorded {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.requests) == 0 {
		t.Fatal("no request reached the server")
	}
	return fs.requests[len(fs.requests)-1]
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL + "/api", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RejectsInvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "localhost:5000", "ftp://shop/api", "http://"} {
		if _, err := New(Config{BaseURL: base}); !errors.Is(err, core.ErrAPIRequired) {
			t.Errorf("New(%q) error = %v, want ErrAPIRequired", base, err)
		}
	}
}

func TestClient_BaseURLTrimsSlash(t *testing.T) {
	c, err := New(Config{BaseURL: "https://shop.example.com/api/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.BaseURL() != "https://shop.example.com/api" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
}

// Requirement: every request carries a request id; the bearer credential is
// attached only while the source yields one.
func TestClient_RequestDecoration(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		setSource  bool
		wantAuth   string
	}{
		{name: "no source"},
		{name: "signed out", setSource: true},
		{name: "signed in", setSource: true, credential: "abc.def.ghi", wantAuth: "Bearer abc.def.ghi"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			fs := newFakeServer(t, map[string]http.HandlerFunc{
				"GET /api/categories": jsonReply(200, `[{"id":1,"name":"Books"}]`),
			})
			c := newTestClient(t, fs.URL)
			if test.setSource {
				c.UseCredentials(func() string { return test.credential })
			}

			// Act
			categories, err := c.ListCategories(context.Background())

			// Assert
			if err != nil {
				t.Fatalf("ListCategories() error = %v", err)
			}
			if len(categories) != 1 || categories[0].Name != "Books" {
				t.Errorf("categories = %+v", categories)
			}
			got := fs.last(t)
			if got.Authorization != test.wantAuth {
				t.Errorf("Authorization = %q, want %q", got.Authorization, test.wantAuth)
			}
			if len(got.RequestID) != requestIDSize {
				t.Errorf("request id = %q, want %d characters", got.RequestID, requestIDSize)
			}
		})
	}
}

func TestClient_Login(t *testing.T) {
	tests := []struct {
		name     string
		reply    http.HandlerFunc
		want     string
		wantErr  error
		wantMsgs []string
	}{
		{name: "token issued", reply: jsonReply(200, `{"token":"t.o.k"}`), want: "t.o.k"},
		{name: "empty token", reply: jsonReply(200, `{}`), wantErr: core.ErrDecode},
		{name: "bad credentials", reply: jsonReply(401, `{"message":"Invalid username or password."}`), wantMsgs: []string{"Invalid username or password."}},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs := newFakeServer(t, map[string]http.HandlerFunc{"POST /api/accounts/login": test.reply})
			c := newTestClient(t, fs.URL)

			got, err := c.Login(context.Background(), "alice", "secret")

			var body loginRequest
			_ = json.Unmarshal([]byte(fs.last(t).Body), &body)
			if body.Username != "alice" || body.Password != "secret" {
				t.Errorf("login body = %+v", body)
			}
			if test.wantMsgs != nil {
				var apiErr *core.APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 || apiErr.Message() != test.wantMsgs[0] {
					t.Fatalf("Login() error = %v, want APIError %q", err, test.wantMsgs)
				}
				return
			}
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("Login() = %q, want %q", got, test.want)
			}
		})
	}
}

// Requirement: optional filters are omitted when unset; page number and
// size are always sent; both array and paged bodies decode.
func TestClient_SearchProducts(t *testing.T) {
	tests := []struct {
		name       string
		filter     core.FilterState
		reply      string
		wantQuery  []string
		rejectKeys []string
		wantItems  int
		wantPages  int
	}{
		{
			name:       "bare array",
			filter:     core.FilterState{PageNumber: 1, PageSize: 12},
			reply:      `[{"id":1,"name":"Go"},{"id":2,"name":"Rust"}]`,
			wantQuery:  []string{"pageNumber=1", "pageSize=12"},
			rejectKeys: []string{"searchTerm", "categoryId", "sortBy"},
			wantItems:  2,
			wantPages:  1,
		},
		{
			name:      "paged object with filters",
			filter:    core.FilterState{SearchTerm: "go", CategoryID: 3, SortKey: "price_desc", PageNumber: 2, PageSize: 1},
			reply:     `{"items":[{"id":7,"name":"Go"}],"pageNumber":2,"pageSize":1,"totalCount":5,"totalPages":5}`,
			wantQuery: []string{"searchTerm=go", "categoryId=3", "sortBy=price_desc", "pageNumber=2", "pageSize=1"},
			wantItems: 1,
			wantPages: 5,
		},
		{
			name:      "empty paged object",
			filter:    core.FilterState{PageNumber: 0, PageSize: 12},
			reply:     `{"totalCount":0}`,
			wantQuery: []string{"pageNumber=1"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			fs := newFakeServer(t, map[string]http.HandlerFunc{"GET /api/products": jsonReply(200, test.reply)})
			c := newTestClient(t, fs.URL)

			// Act
			page, err := c.SearchProducts(context.Background(), test.filter)

			// Assert
			if err != nil {
				t.Fatalf("SearchProducts() error = %v", err)
			}
			if page.Items == nil || len(page.Items) != test.wantItems || page.TotalPages != test.wantPages {
				t.Errorf("page = %+v", page)
			}
			query := fs.last(t).Query
			for _, want := range test.wantQuery {
				if !strings.Contains(query, want) {
					t.Errorf("query %q missing %q", query, want)
				}
			}
			for _, key := range test.rejectKeys {
				if strings.Contains(query, key+"=") {
					t.Errorf("query %q carries unset %q", query, key)
				}
			}
		})
	}
}

func TestClient_ErrorShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "validation array", status: 400, body: `[{"code":"DuplicateUserName","description":"Username 'bob' is already taken."},{"description":"Passwords must have at least one digit."}]`, want: "Username 'bob' is already taken.\nPasswords must have at least one digit."},
		{name: "message object", status: 400, body: `{"message":"Insufficient stock"}`, want: "Insufficient stock"},
		{name: "bare string", status: 409, body: `"Category has products"`, want: "Category has products"},
		{name: "unknown object", status: 500, body: `{"title":"boom"}`},
		{name: "empty body", status: 404},
		{name: "not json", status: 502, body: `<html>bad gateway</html>`},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs := newFakeServer(t, map[string]http.HandlerFunc{"DELETE /api/admin/categories/4": jsonReply(test.status, test.body)})
			c := newTestClient(t, fs.URL)

			err := c.DeleteCategory(context.Background(), 4)

			var apiErr *core.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("DeleteCategory() error = %v, want APIError", err)
			}
			if apiErr.StatusCode != test.status || apiErr.Message() != test.want {
				t.Errorf("APIError = {%d %q}, want {%d %q}", apiErr.StatusCode, apiErr.Message(), test.status, test.want)
			}
		})
	}
}

// Requirement: the mark-as-read body is a JSON array of ids.
func TestClient_MarkNotificationsRead(t *testing.T) {
	fs := newFakeServer(t, map[string]http.HandlerFunc{"POST /api/admin/notifications/mark-as-read": jsonReply(204, "")})
	c := newTestClient(t, fs.URL)

	if err := c.MarkNotificationsRead(context.Background(), []int64{3, 1}); err != nil {
		t.Fatalf("MarkNotificationsRead() error = %v", err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(fs.last(t).Body), &ids); err != nil || len(ids) != 2 || ids[0] != 3 || ids[1] != 1 {
		t.Errorf("body = %q", fs.last(t).Body)
	}
}

func TestClient_UpdateOrderStatus(t *testing.T) {
	fs := newFakeServer(t, map[string]http.HandlerFunc{"PUT /api/admin/orders/9/status": jsonReply(204, "")})
	c := newTestClient(t, fs.URL)

	if err := c.UpdateOrderStatus(context.Background(), 9, core.OrderShipped); err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	if body := fs.last(t).Body; body != `{"newStatus":"Shipped"}` {
		t.Errorf("body = %s", body)
	}
}

func TestClient_DashboardPeriod(t *testing.T) {
	fs := newFakeServer(t, map[string]http.HandlerFunc{
		"GET /api/admin/dashboard/stats":         jsonReply(200, `{"totalRevenue":120.5,"totalOrders":4,"pendingOrders":1}`),
		"GET /api/admin/dashboard/revenue-chart": jsonReply(200, `[{"date":"2026-10-01","revenue":120.5}]`),
	})
	c := newTestClient(t, fs.URL)
	ctx := context.Background()

	stats, err := c.DashboardStats(ctx, "week")
	if err != nil {
		t.Fatalf("DashboardStats() error = %v", err)
	}
	if fs.last(t).Query != "period=week" || stats.TotalOrders != 4 {
		t.Errorf("stats query %q, stats %+v", fs.last(t).Query, stats)
	}

	points, err := c.RevenueChart(ctx, "month")
	if err != nil {
		t.Fatalf("RevenueChart() error = %v", err)
	}
	if fs.last(t).Query != "period=month" || len(points) != 1 || points[0].Revenue != 120.5 {
		t.Errorf("chart query %q, points %+v", fs.last(t).Query, points)
	}
}

func TestClient_UploadImage(t *testing.T) {
	// Arrange
	var gotName, gotContent, gotKind string
	fs := newFakeServer(t, map[string]http.HandlerFunc{
		"POST /api/uploads": func(w http.ResponseWriter, r *http.Request) {
			gotKind = r.URL.Query().Get("type")
			file, header, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer file.Close()
			content, _ := io.ReadAll(file)
			gotName, gotContent = header.Filename, string(content)
			jsonReply(200, `{"imageUrl":"/images/marketing/banner.png"}`)(w, r)
		},
	})
	c := newTestClient(t, fs.URL)

	// Act
	url, err := c.UploadImage(context.Background(), "marketing", "banner.png", strings.NewReader("PNGDATA"))

	// Assert
	if err != nil {
		t.Fatalf("UploadImage() error = %v", err)
	}
	if url != "/images/marketing/banner.png" {
		t.Errorf("url = %q", url)
	}
	if gotKind != "marketing" || gotName != "banner.png" || gotContent != "PNGDATA" {
		t.Errorf("server saw kind %q name %q content %q", gotKind, gotName, gotContent)
	}
}

func TestClient_CreateUserDropsPassword(t *testing.T) {
	fs := newFakeServer(t, map[string]http.HandlerFunc{
		"POST /api/admin/users": jsonReply(201, `{"id":"u-9","username":"bob","roles":["Customer"]}`),
	})
	c := newTestClient(t, fs.URL)

	user, err := c.CreateUser(context.Background(), core.User{Username: "bob", Password: "secret1", Roles: []string{"Customer"}})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.ID != "u-9" || user.Password != "" {
		t.Errorf("user = %+v", user)
	}
	if !strings.Contains(fs.last(t).Body, `"password":"secret1"`) {
		t.Errorf("password not sent: %s", fs.last(t).Body)
	}
}

func TestClient_TransportError(t *testing.T) {
	fs := newFakeServer(t, nil)
	c := newTestClient(t, fs.URL)
	fs.Close()

	_, err := c.MyOrders(context.Background())

	var apiErr *core.APIError
	if err == nil || errors.As(err, &apiErr) {
		t.Errorf("MyOrders() error = %v, want transport error", err)
	}
}
