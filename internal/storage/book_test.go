package storage

import (
	"errors"
	"testing"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
)

func testPosition(id uint64, trader, symbol string) *domain.Position {
	return &domain.Position{
		ID:           id,
		Trader:       trader,
		Symbol:       symbol,
		IsLong:       true,
		Leverage:     10,
		MarginE6:     100000000,
		EntryPriceE8: 400000000000,
		SizeE6:       1000000000,
		LiqPriceE8:   362000000000,
		Status:       domain.StatusOpen,
	}
}

func TestBook_OpenGetCloseRoundTrip(t *testing.T) {
	b := NewBook()

	if err := b.Open(testPosition(1, "A", "ETHUSD")); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, err := b.Get(1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Symbol != "ETHUSD" || got.Trader != "A" {
		t.Errorf("unexpected position: %+v", got)
	}

	removed, err := b.Close(1)
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if removed.ID != 1 {
		t.Errorf("Close returned id %d", removed.ID)
	}

	// Round-trip: closed position is gone from both access paths
	if _, err := b.Get(1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after close: want ErrNotFound, got %v", err)
	}
	if got := b.List("A"); len(got) != 0 {
		t.Errorf("List after close: want empty, got %d", len(got))
	}
}

func TestBook_DuplicateID(t *testing.T) {
	b := NewBook()
	if err := b.Open(testPosition(7, "A", "ETHUSD")); err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	err := b.Open(testPosition(7, "B", "BTCUSD"))
	if !errors.Is(err, domain.ErrDuplicateID) {
		t.Errorf("want ErrDuplicateID, got %v", err)
	}
}

func TestBook_CloseNotFound(t *testing.T) {
	b := NewBook()
	if _, err := b.Close(42); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestBook_ListInsertionOrder(t *testing.T) {
	b := NewBook()
	for _, id := range []uint64{3, 1, 2} {
		if err := b.Open(testPosition(id, "A", "ETHUSD")); err != nil {
			t.Fatalf("Open %d failed: %v", id, err)
		}
	}

	got := b.List("A")
	if len(got) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(got))
	}
	for i, want := range []uint64{3, 1, 2} {
		if got[i].ID != want {
			t.Errorf("position %d: got id %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestBook_ListIsolatesTraders(t *testing.T) {
	b := NewBook()
	b.Open(testPosition(1, "A", "ETHUSD"))
	b.Open(testPosition(2, "B", "ETHUSD"))

	if got := b.List("A"); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("List(A) = %+v", got)
	}
	if got := b.List("B"); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("List(B) = %+v", got)
	}
	if got := b.List("C"); len(got) != 0 {
		t.Errorf("List(C) = %+v", got)
	}
}

func TestBook_ListSymbol(t *testing.T) {
	b := NewBook()
	b.Open(testPosition(1, "A", "ETHUSD"))
	b.Open(testPosition(2, "B", "BTCUSD"))
	b.Open(testPosition(3, "B", "ETHUSD"))

	got := b.ListSymbol("ETHUSD")
	if len(got) != 2 {
		t.Fatalf("expected 2 ETHUSD positions, got %d", len(got))
	}
	// Stable trader order: A before B
	if got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("ListSymbol order: got ids %d,%d", got[0].ID, got[1].ID)
	}
}

func TestBook_GetReturnsCopy(t *testing.T) {
	b := NewBook()
	b.Open(testPosition(1, "A", "ETHUSD"))

	got, _ := b.Get(1)
	got.Status = domain.StatusClosed

	again, _ := b.Get(1)
	if again.Status != domain.StatusOpen {
		t.Error("mutation through Get copy leaked into the book")
	}
}
