package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lborres/shopfront/core"
)

const (
	DefaultDebounceWindow = 500 * time.Millisecond
	DefaultPageSize       = 12
)

// CatalogResult is the product list currently shown together with the
// filter that produced it.
type CatalogResult struct {
	Filter     core.FilterState `json:"filter"`
	Products   []core.Product   `json:"products"`
	PageNumber int              `json:"pageNumber"`
	PageSize   int              `json:"pageSize"`
	TotalCount int              `json:"totalCount"`
	TotalPages int              `json:"totalPages"`
	Loading    bool             `json:"loading"`
	Error      string           `json:"error,omitempty"`
}

// CatalogQuery turns filter changes into debounced product searches.
//
// Each change restarts the quiescence window. When it elapses one request
// is issued for the filter as it stands. Every request takes a sequence
// number; issuing a new one cancels the previous, and only the latest
// sequence may replace the result.
type CatalogQuery struct {
	api      core.CatalogAPI
	notifier core.Notifier
	logger   *slog.Logger
	window   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	filter         core.FilterState
	timer          *time.Timer
	timerGen       uint64
	seq            uint64
	cancelInflight context.CancelFunc
	result         CatalogResult
	closed         bool
}

func NewCatalogQuery(api core.CatalogAPI, notifier core.Notifier, window time.Duration, pageSize int, logger *slog.Logger) *CatalogQuery {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	filter := core.FilterState{PageNumber: 1, PageSize: pageSize}

	return &CatalogQuery{
		api:      api,
		notifier: notifier,
		logger:   logger,
		window:   window,
		ctx:      ctx,
		cancel:   cancel,
		filter:   filter,
		result:   CatalogResult{Filter: filter, Products: []core.Product{}},
	}
}

func (q *CatalogQuery) SetSearchTerm(term string) {
	q.update(func(f *core.FilterState) { f.SearchTerm = term })
}

func (q *CatalogQuery) SetCategory(categoryID int64) {
	q.update(func(f *core.FilterState) { f.CategoryID = categoryID })
}

func (q *CatalogQuery) SetSort(sortKey string) {
	q.update(func(f *core.FilterState) { f.SortKey = sortKey })
}

func (q *CatalogQuery) SetPageSize(size int) {
	q.update(func(f *core.FilterState) {
		if size > 0 {
			f.PageSize = size
		}
	})
}

// SetPage changes only the page; it is debounced like any other change.
func (q *CatalogQuery) SetPage(page int) {
	q.update(func(f *core.FilterState) { f.PageNumber = max(1, page) })
}

// Apply replaces the whole filter. If anything besides the page differs
// from the current filter the page resets to 1.
func (q *CatalogQuery) Apply(filter core.FilterState) {
	q.update(func(f *core.FilterState) { *f = filter })
}

// update applies change, resets the page when another field moved, and
// restarts the debounce window. No-op changes are ignored.
func (q *CatalogQuery) update(change func(*core.FilterState)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	prev := q.filter
	next := prev
	change(&next)

	if next.PageSize <= 0 {
		next.PageSize = prev.PageSize
	}
	if next.PageNumber < 1 {
		next.PageNumber = 1
	}

	otherChanged := next.SearchTerm != prev.SearchTerm ||
		next.CategoryID != prev.CategoryID ||
		next.SortKey != prev.SortKey ||
		next.PageSize != prev.PageSize
	if otherChanged {
		next.PageNumber = 1
	}
	if next == prev {
		return
	}

	q.filter = next
	q.scheduleLocked()
}

func (q *CatalogQuery) scheduleLocked() {
	q.timerGen++
	gen := q.timerGen

	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.window, func() { q.fire(gen) })
}

func (q *CatalogQuery) fire(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// a Stop that lost the race leaves a stale callback behind
	if q.closed || gen != q.timerGen {
		return
	}
	q.timer = nil
	q.issueLocked()
}

// Refresh issues a request for the current filter immediately, dropping
// any pending debounce.
func (q *CatalogQuery) Refresh() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.timerGen++
	q.issueLocked()
}

func (q *CatalogQuery) issueLocked() {
	q.seq++
	seq := q.seq
	filter := q.filter

	if q.cancelInflight != nil {
		q.cancelInflight()
	}
	ctx, cancel := context.WithCancel(q.ctx)
	q.cancelInflight = cancel
	q.result.Loading = true

	q.wg.Add(1)
	go q.execute(ctx, cancel, seq, filter)
}

func (q *CatalogQuery) execute(ctx context.Context, cancel context.CancelFunc, seq uint64, filter core.FilterState) {
	defer q.wg.Done()
	defer cancel()

	page, err := q.api.SearchProducts(ctx, filter)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || seq != q.seq {
		q.logger.Debug("discarding superseded catalog response", "seq", seq, "latest", q.seq)
		return
	}
	q.cancelInflight = nil

	if err != nil {
		q.result.Loading = false
		q.result.Error = core.UserMessage(err, "Failed to load products.")
		q.logger.Error("failed to search products", "err", err, "searchTerm", filter.SearchTerm, "page", filter.PageNumber)
		if q.notifier != nil {
			q.notifier.Notify(core.ToastError, q.result.Error)
		}
		return
	}

	if page == nil {
		page = &core.ProductPage{}
	}
	products := page.Items
	if products == nil {
		products = []core.Product{}
	}
	q.result = CatalogResult{
		Filter:     filter,
		Products:   products,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
	}
}

// Filter returns the current filter, which may be ahead of Result.
func (q *CatalogQuery) Filter() core.FilterState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.filter
}

// Result returns the latest applied result.
func (q *CatalogQuery) Result() CatalogResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	r := q.result
	r.Products = append([]core.Product{}, q.result.Products...)
	return r
}

// Close stops the debounce timer, cancels any in-flight request and waits
// for it. Later changes are ignored.
func (q *CatalogQuery) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}
