package services

import (
	"fmt"
	"testing"

	"github.com/lborres/shopfront/core"
)

func TestToastQueue_DropsOldest(t *testing.T) {
	// Arrange
	q := NewToastQueue(3, discardLogger())

	// Act
	for i := range 5 {
		q.Notify(core.ToastInfo, fmt.Sprintf("notice %d", i))
	}

	// Assert
	pending := q.Pending()
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}
	if pending[0].Message != "notice 2" || pending[2].Message != "notice 4" {
		t.Errorf("pending = %q .. %q, want notice 2 .. notice 4", pending[0].Message, pending[2].Message)
	}
	if q.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", q.Dropped())
	}
}

func TestToastQueue_Drain(t *testing.T) {
	// Arrange
	q := NewToastQueue(0, discardLogger())
	q.Notify(core.ToastSuccess, "saved")
	q.Notify(core.ToastError, "failed")

	// Act
	drained := q.Drain()

	// Assert
	if len(drained) != 2 || drained[0].Level != core.ToastSuccess || drained[1].Level != core.ToastError {
		t.Fatalf("Drain() = %+v", drained)
	}
	if drained[0].ID == "" || drained[0].ID == drained[1].ID {
		t.Errorf("toast IDs not unique: %q %q", drained[0].ID, drained[1].ID)
	}
	if len(q.Pending()) != 0 {
		t.Error("queue not empty after Drain")
	}
}
