package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/lborres/shopfront/core"
)

// FakeStorage is a test-only fake implementing core.Storage.
// It stores values in a map and exposes error fields for behavior injection.
type FakeStorage struct {
	mu        sync.Mutex
	values    map[string][]byte
	getErr    error
	setErr    error
	deleteErr error
	sets      int
	deletes   int
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{values: make(map[string][]byte)}
}

func (f *FakeStorage) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return nil, core.ErrStorageNotFound
	}
	return append([]byte(nil), v...), nil
}

func (f *FakeStorage) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = append([]byte(nil), value...)
	return nil
}

func (f *FakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.values, key)
	return nil
}

func (f *FakeStorage) Raw(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return string(v), ok
}

func (f *FakeStorage) Put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = []byte(value)
}

// FakeNotifier records notices.
type FakeNotifier struct {
	mu     sync.Mutex
	toasts []core.Toast
}

func (f *FakeNotifier) Notify(level core.ToastLevel, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, core.Toast{Level: level, Message: message})
}

func (f *FakeNotifier) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.toasts))
	for _, t := range f.toasts {
		out = append(out, t.Message)
	}
	return out
}

func (f *FakeNotifier) Last() (core.Toast, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.toasts) == 0 {
		return core.Toast{}, false
	}
	return f.toasts[len(f.toasts)-1], true
}

var errFakeNotConfigured = errors.New("fake: not configured")

// FakeAPI is a test-only fake implementing core.API. Behaviour is set
// through the function fields; unset functions fail with
// errFakeNotConfigured. Calls are recorded.
type FakeAPI struct {
	mu sync.Mutex

	LoginFn         func(ctx context.Context, identity, secret string) (string, error)
	SearchFn        func(ctx context.Context, filter core.FilterState) (*core.ProductPage, error)
	ListNotifFn     func(ctx context.Context) ([]core.Notification, error)
	MarkReadFn      func(ctx context.Context, ids []int64) error
	PlaceOrderFn    func(ctx context.Context, input core.PlaceOrderInput) (*core.PlaceOrderResult, error)
	StatsFn         func(ctx context.Context, period string) (*core.DashboardStats, error)
	RevenueFn       func(ctx context.Context, period string) ([]core.RevenuePoint, error)
	UploadFn        func(ctx context.Context, kind, filename string, r io.Reader) (string, error)
	ChangePassFn    func(ctx context.Context, input core.ChangePasswordInput) error
	MutationErr     error
	LoginCalls      int
	SearchCalls     []core.FilterState
	MarkReadCalls   [][]int64
	PlaceOrderCalls []core.PlaceOrderInput
	Mutations       []string
}

var _ core.API = (*FakeAPI)(nil)

func (f *FakeAPI) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Mutations = append(f.Mutations, op)
	return f.MutationErr
}

func (f *FakeAPI) Login(ctx context.Context, identity, secret string) (string, error) {
	f.mu.Lock()
	f.LoginCalls++
	fn := f.LoginFn
	f.mu.Unlock()
	if fn == nil {
		return "", errFakeNotConfigured
	}
	return fn(ctx, identity, secret)
}

func (f *FakeAPI) SearchProducts(ctx context.Context, filter core.FilterState) (*core.ProductPage, error) {
	f.mu.Lock()
	f.SearchCalls = append(f.SearchCalls, filter)
	fn := f.SearchFn
	f.mu.Unlock()
	if fn == nil {
		return &core.ProductPage{}, nil
	}
	return fn(ctx, filter)
}

func (f *FakeAPI) Searches() []core.FilterState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.FilterState(nil), f.SearchCalls...)
}

func (f *FakeAPI) GetProduct(_ context.Context, id int64) (*core.Product, error) {
	return &core.Product{ID: id, Name: "Product", Price: 1}, nil
}

func (f *FakeAPI) ListCategories(context.Context) ([]core.Category, error) {
	return []core.Category{}, nil
}

func (f *FakeAPI) ListNotifications(ctx context.Context) ([]core.Notification, error) {
	f.mu.Lock()
	fn := f.ListNotifFn
	f.mu.Unlock()
	if fn == nil {
		return []core.Notification{}, nil
	}
	return fn(ctx)
}

func (f *FakeAPI) MarkNotificationsRead(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	f.MarkReadCalls = append(f.MarkReadCalls, append([]int64(nil), ids...))
	fn := f.MarkReadFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, ids)
}

func (f *FakeAPI) MarkReadBatches() [][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]int64(nil), f.MarkReadCalls...)
}

func (f *FakeAPI) PlaceOrder(ctx context.Context, input core.PlaceOrderInput) (*core.PlaceOrderResult, error) {
	f.mu.Lock()
	f.PlaceOrderCalls = append(f.PlaceOrderCalls, input)
	fn := f.PlaceOrderFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errFakeNotConfigured
	}
	return fn(ctx, input)
}

func (f *FakeAPI) MyOrders(context.Context) ([]core.Order, error) {
	return []core.Order{{ID: 1, Status: core.OrderProcessing}}, nil
}

func (f *FakeAPI) GetOrder(_ context.Context, id int64) (*core.Order, error) {
	return &core.Order{ID: id, Status: core.OrderProcessing}, nil
}

func (f *FakeAPI) GetProfile(context.Context) (*core.Profile, error) {
	return &core.Profile{UserName: "alice", FullName: "Alice", Email: "alice@example.com"}, nil
}

func (f *FakeAPI) UpdateProfile(context.Context, core.Profile) error {
	return f.record("update profile")
}

func (f *FakeAPI) ChangePassword(ctx context.Context, input core.ChangePasswordInput) error {
	if err := f.record("change password"); err != nil {
		return err
	}
	if f.ChangePassFn != nil {
		return f.ChangePassFn(ctx, input)
	}
	return nil
}

func (f *FakeAPI) ListAdminCategories(context.Context) ([]core.Category, error) {
	return []core.Category{{ID: 1, Name: "Books"}}, nil
}

func (f *FakeAPI) CreateCategory(_ context.Context, name string) (*core.Category, error) {
	if err := f.record("create category"); err != nil {
		return nil, err
	}
	return &core.Category{ID: 2, Name: name}, nil
}

func (f *FakeAPI) UpdateCategory(context.Context, int64, string) error {
	return f.record("update category")
}

func (f *FakeAPI) DeleteCategory(context.Context, int64) error {
	return f.record("delete category")
}

func (f *FakeAPI) ListAdminProducts(context.Context) ([]core.Product, error) {
	return []core.Product{}, nil
}

func (f *FakeAPI) CreateProduct(_ context.Context, p core.Product) (*core.Product, error) {
	if err := f.record("create product"); err != nil {
		return nil, err
	}
	p.ID = 99
	return &p, nil
}

func (f *FakeAPI) UpdateProduct(context.Context, core.Product) error {
	return f.record("update product")
}

func (f *FakeAPI) DeleteProduct(context.Context, int64) error {
	return f.record("delete product")
}

func (f *FakeAPI) ListUsers(context.Context) ([]core.User, error) {
	return []core.User{}, nil
}

func (f *FakeAPI) ListRoles(context.Context) ([]core.Role, error) {
	return []core.Role{{Name: core.RoleAdmin}, {Name: "Customer"}}, nil
}

func (f *FakeAPI) CreateUser(_ context.Context, u core.User) (*core.User, error) {
	if err := f.record("create user"); err != nil {
		return nil, err
	}
	u.ID = "new"
	return &u, nil
}

func (f *FakeAPI) UpdateUser(context.Context, core.User) error {
	return f.record("update user")
}

func (f *FakeAPI) DeleteUser(context.Context, string) error {
	return f.record("delete user")
}

func (f *FakeAPI) ListAllOrders(context.Context) ([]core.Order, error) {
	return []core.Order{}, nil
}

func (f *FakeAPI) UpdateOrderStatus(context.Context, int64, core.OrderStatus) error {
	return f.record("update order status")
}

func (f *FakeAPI) DashboardStats(ctx context.Context, period string) (*core.DashboardStats, error) {
	if f.StatsFn == nil {
		return &core.DashboardStats{}, nil
	}
	return f.StatsFn(ctx, period)
}

func (f *FakeAPI) RevenueChart(ctx context.Context, period string) ([]core.RevenuePoint, error) {
	if f.RevenueFn == nil {
		return []core.RevenuePoint{}, nil
	}
	return f.RevenueFn(ctx, period)
}

func (f *FakeAPI) UploadImage(ctx context.Context, kind, filename string, r io.Reader) (string, error) {
	if err := f.record("upload image"); err != nil {
		return "", err
	}
	if f.UploadFn == nil {
		return "/uploads/" + filename, nil
	}
	return f.UploadFn(ctx, kind, filename, r)
}

func (f *FakeAPI) SendNewsletter(context.Context, core.Newsletter) error {
	return f.record("send newsletter")
}

func (f *FakeAPI) NewsletterHistory(context.Context) ([]core.Newsletter, error) {
	return []core.Newsletter{}, nil
}

func (f *FakeAPI) MutationLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Mutations...)
}

// FakePushConnection is a test-only fake implementing core.PushConnection.
// Tests feed events through Emit.
type FakePushConnection struct {
	mu       sync.Mutex
	events   chan core.PushEvent
	startErr error
	started  bool
	stopped  bool
	invokes  []string
}

func NewFakePushConnection(startErr error) *FakePushConnection {
	return &FakePushConnection{events: make(chan core.PushEvent, 16), startErr: startErr}
}

func (f *FakePushConnection) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *FakePushConnection) Invoke(_ context.Context, method string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invokes = append(f.invokes, method)
	return nil
}

func (f *FakePushConnection) Events() <-chan core.PushEvent {
	return f.events
}

func (f *FakePushConnection) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *FakePushConnection) Emit(ev core.PushEvent) {
	f.events <- ev
}

func (f *FakePushConnection) Invocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invokes...)
}

func (f *FakePushConnection) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// FakeDialer hands out the queued connections in order, then healthy ones.
type FakeDialer struct {
	mu      sync.Mutex
	queue   []*FakePushConnection
	dialed  []*FakePushConnection
	hubURLs []string
}

func (d *FakeDialer) Dial(hubURL string, _ core.CredentialSource) core.PushConnection {
	d.mu.Lock()
	defer d.mu.Unlock()

	var conn *FakePushConnection
	if len(d.queue) > 0 {
		conn, d.queue = d.queue[0], d.queue[1:]
	} else {
		conn = NewFakePushConnection(nil)
	}
	d.dialed = append(d.dialed, conn)
	d.hubURLs = append(d.hubURLs, hubURL)
	return conn
}

func (d *FakeDialer) Dialed() []*FakePushConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakePushConnection(nil), d.dialed...)
}

func (d *FakeDialer) HubURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.hubURLs...)
}
