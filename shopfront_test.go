package shopfront

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lborres/shopfront/core"
	"github.com/lborres/shopfront/pkg/cache"
	"github.com/lborres/shopfront/pkg/token"
	"github.com/lborres/shopfront/services"
)

// restAPI is a FakeAPI that also knows its base URL and accepts a
// credential source, like the REST client.
type restAPI struct {
	*services.FakeAPI
	base string

	mu  sync.Mutex
	src core.CredentialSource
}

func (r *restAPI) BaseURL() string { return r.base }

func (r *restAPI) UseCredentials(src core.CredentialSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.src = src
}

func (r *restAPI) credential() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.src == nil {
		return ""
	}
	return r.src()
}

type recordingAdapter struct {
	registered *Shopfront
	err        error
}

func (a *recordingAdapter) RegisterRoutes(sf *Shopfront) error {
	a.registered = sf
	return a.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedCredential(t *testing.T, identity, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		token.NameClaim: identity,
		token.RoleClaim: role,
		"exp":           time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("server-side-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

// Requirement: New validates its required collaborators.
func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "missing api",
			config:  Config{Storage: services.NewFakeStorage(), HTTP: &recordingAdapter{}},
			wantErr: ErrAPIRequired,
		},
		{
			name:    "missing storage",
			config:  Config{API: &services.FakeAPI{}, HTTP: &recordingAdapter{}},
			wantErr: ErrStorageRequired,
		},
		{
			name:    "missing http adapter",
			config:  Config{API: &services.FakeAPI{}, Storage: services.NewFakeStorage()},
			wantErr: ErrHTTPAdapterRequired,
		},
		{
			name:    "hub url not derivable",
			config:  Config{API: &services.FakeAPI{}, Storage: services.NewFakeStorage(), HTTP: &recordingAdapter{}},
			wantErr: ErrHubURLRequired,
		},
		{
			name:    "invalid api base",
			config:  Config{API: &restAPI{FakeAPI: &services.FakeAPI{}, base: "not a url"}, Storage: services.NewFakeStorage(), HTTP: &recordingAdapter{}},
			wantErr: ErrHubURLRequired,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			test.config.Logger = discardLogger()

			_, err := New(context.Background(), test.config)

			if !errors.Is(err, test.wantErr) {
				t.Errorf("New() error = %v, want %v", err, test.wantErr)
			}
		})
	}
}

// Requirement: boot restores the stored session and cart, activates the
// notification channel for an admin and registers routes last.
func TestNew_BootsFromStorage(t *testing.T) {
	// Arrange
	storage := services.NewFakeStorage()
	storage.Put(services.CredentialKey, signedCredential(t, "root", core.RoleAdmin))
	storage.Put(services.CartKey, `[{"id":1,"name":"Go in Action","price":30,"quantity":2}]`)

	api := &restAPI{FakeAPI: &services.FakeAPI{}, base: "https://shop.example.com/api"}
	dialer := &services.FakeDialer{}
	adapter := &recordingAdapter{}

	// Act
	sf, err := New(context.Background(), Config{
		API:            api,
		Storage:        storage,
		HTTP:           adapter,
		PushDialer:     dialer.Dial,
		DebounceWindow: 10 * time.Millisecond,
		Logger:         discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sf.Close()

	// Assert
	if snap := sf.Session.Snapshot(); snap.State != core.SessionAuthenticated || snap.Principal.Identity != "root" {
		t.Errorf("session = %+v", snap)
	}
	if sf.Cart.Count() != 2 {
		t.Errorf("cart count = %d, want 2", sf.Cart.Count())
	}
	if adapter.registered != sf {
		t.Error("routes not registered with the built Shopfront")
	}
	if sf.HubURL != "https://shop.example.com/notificationHub" {
		t.Errorf("HubURL = %q", sf.HubURL)
	}
	if api.credential() == "" {
		t.Error("REST client has no credential source")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !sf.Notifications.Active() || len(dialer.HubURLs()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("notification channel not activated for admin")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if urls := dialer.HubURLs(); urls[0] != sf.HubURL {
		t.Errorf("dialed %q, want %q", urls[0], sf.HubURL)
	}
}

func TestNew_AnonymousBoot(t *testing.T) {
	storage := services.NewFakeStorage()
	dialer := &services.FakeDialer{}

	sf, err := New(context.Background(), Config{
		API:        &services.FakeAPI{},
		Storage:    storage,
		HTTP:       &recordingAdapter{},
		PushDialer: dialer.Dial,
		HubURL:     "http://localhost:5000/notificationHub",
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sf.Close()

	if sf.Session.Snapshot().State != core.SessionAnonymous {
		t.Errorf("state = %v, want anonymous", sf.Session.Snapshot().State)
	}
	if sf.Notifications.Active() || len(dialer.Dialed()) != 0 {
		t.Error("notification channel active without an admin session")
	}

	decision := sf.Authorize("/checkout")
	if decision.Kind != services.DecisionRedirect || decision.Target != services.LoginPath || decision.From != "/checkout" {
		t.Errorf("Authorize(/checkout) = %+v", decision)
	}
	if got := sf.Authorize("/products/3"); got.Kind != services.DecisionAllow {
		t.Errorf("Authorize(/products/3) = %+v, want allow", got)
	}
}

func TestNew_RegisterRoutesFailure(t *testing.T) {
	wantErr := errors.New("route conflict")

	_, err := New(context.Background(), Config{
		API:     &services.FakeAPI{},
		Storage: services.NewFakeStorage(),
		HTTP:    &recordingAdapter{err: wantErr},
		HubURL:  "http://localhost:5000/notificationHub",
		Logger:  discardLogger(),
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("New() error = %v, want %v", err, wantErr)
	}
}

func TestNew_ConflictingRoutes(t *testing.T) {
	_, err := New(context.Background(), Config{
		API:     &services.FakeAPI{},
		Storage: services.NewFakeStorage(),
		HTTP:    &recordingAdapter{},
		HubURL:  "http://localhost:5000/notificationHub",
		Routes:  []RouteRule{{Pattern: "/orders/:orderId"}},
		Logger:  discardLogger(),
	})

	if err == nil {
		t.Error("New() accepted a route conflicting with /orders/:id")
	}
}

func TestShopfront_StorageStats(t *testing.T) {
	tests := []struct {
		name    string
		storage Storage
		wantOK  bool
	}{
		{name: "memory storage keeps stats", storage: cache.NewMemoryStorage(), wantOK: true},
		{name: "fake storage does not", storage: services.NewFakeStorage()},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			sf, err := New(context.Background(), Config{
				API:     &services.FakeAPI{},
				Storage: test.storage,
				HTTP:    &recordingAdapter{},
				HubURL:  "http://localhost:5000/notificationHub",
				Logger:  discardLogger(),
			})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer sf.Close()

			stats, ok := sf.StorageStats()

			if ok != test.wantOK {
				t.Fatalf("StorageStats() ok = %v, want %v", ok, test.wantOK)
			}
			// Boot reads the credential and cart keys, both absent.
			if ok && stats.Misses != 2 {
				t.Errorf("stats = %+v, want 2 misses", stats)
			}
		})
	}
}
