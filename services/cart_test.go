package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/lborres/shopfront/core"
)

var (
	book = core.Product{ID: 1, Name: "Go in Action", Price: 30}
	pen  = core.Product{ID: 2, Name: "Pen", Price: 2.5}
)

func storedLines(t *testing.T, storage *FakeStorage) []core.CartLine {
	t.Helper()
	raw, ok := storage.Raw(CartKey)
	if !ok {
		t.Fatal("cart not persisted")
	}
	var lines []core.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		t.Fatalf("stored cart is not JSON: %v", err)
	}
	return lines
}

func TestCartLedger_AddItem(t *testing.T) {
	tests := []struct {
		name      string
		adds      []core.Product
		qty       int
		wantErr   error
		wantLines int
		wantCount int
		wantTotal float64
	}{
		{name: "new line", adds: []core.Product{book}, qty: 1, wantLines: 1, wantCount: 1, wantTotal: 30},
		{name: "repeat increments", adds: []core.Product{book, book}, qty: 2, wantLines: 1, wantCount: 4, wantTotal: 120},
		{name: "two products", adds: []core.Product{book, pen}, qty: 1, wantLines: 2, wantCount: 2, wantTotal: 32.5},
		{name: "zero quantity", adds: []core.Product{book}, qty: 0, wantErr: core.ErrInvalidQuantity},
		{name: "missing product", adds: []core.Product{{Name: "ghost"}}, qty: 1, wantErr: core.ErrInvalidProduct},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			storage := NewFakeStorage()
			cart := NewCartLedger(storage, &FakeNotifier{}, discardLogger())

			// Act
			var err error
			for _, p := range test.adds {
				if err = cart.AddItem(context.Background(), p, test.qty); err != nil {
					break
				}
			}

			// Assert
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("AddItem() error = %v, want %v", err, test.wantErr)
				}
				if len(cart.Lines()) != 0 {
					t.Error("rejected add changed the cart")
				}
				return
			}
			if err != nil {
				t.Fatalf("AddItem() error = %v", err)
			}
			summary := cart.Summary()
			if len(summary.Lines) != test.wantLines || summary.Count != test.wantCount || summary.Total != test.wantTotal {
				t.Errorf("summary = %d lines, count %d, total %v; want %d, %d, %v",
					len(summary.Lines), summary.Count, summary.Total, test.wantLines, test.wantCount, test.wantTotal)
			}
			if got := storedLines(t, storage); len(got) != test.wantLines {
				t.Errorf("stored lines = %d, want %d", len(got), test.wantLines)
			}
		})
	}
}

func TestCartLedger_Notices(t *testing.T) {
	// Arrange
	notifier := &FakeNotifier{}
	cart := NewCartLedger(NewFakeStorage(), notifier, discardLogger())

	// Act
	_ = cart.AddItem(context.Background(), book, 1)
	cart.RemoveItem(context.Background(), pen.ID)
	cart.RemoveItem(context.Background(), book.ID)

	// Assert
	want := []string{`"Go in Action" added to cart!`, "Item removed from cart."}
	got := notifier.Messages()
	if len(got) != len(want) {
		t.Fatalf("notices = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notice[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCartLedger_SetQuantity(t *testing.T) {
	tests := []struct {
		name string
		qty  int
		want int
	}{
		{name: "raise", qty: 5, want: 5},
		{name: "zero clamps to one", qty: 0, want: 1},
		{name: "negative clamps to one", qty: -3, want: 1},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			storage := NewFakeStorage()
			cart := NewCartLedger(storage, nil, discardLogger())
			_ = cart.AddItem(context.Background(), book, 2)

			// Act
			cart.SetQuantity(context.Background(), book.ID, test.qty)

			// Assert
			if got := cart.Lines()[0].Quantity; got != test.want {
				t.Errorf("quantity = %d, want %d", got, test.want)
			}
			if got := storedLines(t, storage)[0].Quantity; got != test.want {
				t.Errorf("stored quantity = %d, want %d", got, test.want)
			}
		})
	}
}

func TestCartLedger_SetQuantityUnknownProduct(t *testing.T) {
	storage := NewFakeStorage()
	cart := NewCartLedger(storage, nil, discardLogger())

	cart.SetQuantity(context.Background(), 42, 3)

	if len(cart.Lines()) != 0 {
		t.Error("SetQuantity created a line")
	}
	if _, ok := storage.Raw(CartKey); ok {
		t.Error("no-op SetQuantity persisted")
	}
}

func TestCartLedger_ClearPersistsEmptyArray(t *testing.T) {
	// Arrange
	storage := NewFakeStorage()
	cart := NewCartLedger(storage, nil, discardLogger())
	_ = cart.AddItem(context.Background(), book, 1)

	// Act
	cart.Clear(context.Background())

	// Assert
	if raw, _ := storage.Raw(CartKey); raw != "[]" {
		t.Errorf("stored cart = %q, want []", raw)
	}
	if cart.Count() != 0 || cart.Total() != 0 {
		t.Errorf("count %d total %v after clear", cart.Count(), cart.Total())
	}
}

func TestCartLedger_Load(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		present   bool
		wantLines int
		wantCount int
	}{
		{name: "missing", wantLines: 0},
		{name: "corrupt", stored: "{not json", present: true, wantLines: 0},
		{
			name:      "valid",
			stored:    `[{"id":1,"name":"Go in Action","price":30,"quantity":2}]`,
			present:   true,
			wantLines: 1,
			wantCount: 2,
		},
		{
			name:      "repairs invalid lines",
			stored:    `[{"id":0,"quantity":2},{"id":1,"quantity":0},{"id":1,"quantity":3}]`,
			present:   true,
			wantLines: 1,
			wantCount: 4,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			storage := NewFakeStorage()
			if test.present {
				storage.Put(CartKey, test.stored)
			}
			cart := NewCartLedger(storage, nil, discardLogger())

			// Act
			cart.Load(context.Background())

			// Assert
			if got := len(cart.Lines()); got != test.wantLines {
				t.Errorf("lines = %d, want %d", got, test.wantLines)
			}
			if got := cart.Count(); got != test.wantCount {
				t.Errorf("count = %d, want %d", got, test.wantCount)
			}
		})
	}
}

// Requirement: a failed storage write keeps the in-memory change.
func TestCartLedger_PersistFailure(t *testing.T) {
	storage := NewFakeStorage()
	storage.setErr = errors.New("quota exceeded")
	cart := NewCartLedger(storage, nil, discardLogger())

	if err := cart.AddItem(context.Background(), book, 1); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	if cart.Count() != 1 {
		t.Errorf("count = %d, want 1", cart.Count())
	}
}

// Requirement: concurrent adds are neither lost nor split across lines.
func TestCartLedger_ConcurrentAdds(t *testing.T) {
	// Arrange
	storage := NewFakeStorage()
	cart := NewCartLedger(storage, nil, discardLogger())

	// Act
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() { _ = cart.AddItem(context.Background(), book, 1) })
	}
	wg.Wait()

	// Assert
	lines := cart.Lines()
	if len(lines) != 1 || lines[0].Quantity != 50 {
		t.Fatalf("lines = %+v, want one line with quantity 50", lines)
	}
	if got := storedLines(t, storage)[0].Quantity; got != 50 {
		t.Errorf("stored quantity = %d, want 50", got)
	}
}
