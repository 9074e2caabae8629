package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestBrokerDelivery(t *testing.T) {
	b := NewBroker()
	var alice, all []Change

	subA, _ := b.Subscribe("alice", func(c Change) { alice = append(alice, c) })
	subAll, _ := b.Subscribe("", func(c Change) { all = append(all, c) })

	ctx := context.Background()
	_ = b.Publish(ctx, Change{Type: ChangeInsert, UserID: "alice", TransactionID: "1"})
	_ = b.Publish(ctx, Change{Type: ChangeInsert, UserID: "bob", TransactionID: "2"})

	if len(alice) != 1 || alice[0].TransactionID != "1" {
		t.Fatalf("alice got %+v", alice)
	}
	if len(all) != 2 {
		t.Fatalf("wildcard subscriber got %+v", all)
	}

	subA.Unsubscribe()
	subA.Unsubscribe()
	_ = b.Publish(ctx, Change{UserID: "alice"})
	if len(alice) != 1 {
		t.Fatalf("unsubscribed handler still called")
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	subAll.Unsubscribe()
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", b.Len())
	}
}

func TestStoreError(t *testing.T) {
	base := errors.New("disk full")
	err := Wrap("insert", base)

	if !errors.Is(err, ErrStore) || !errors.Is(err, base) {
		t.Fatalf("unexpected Is behaviour for %v", err)
	}
	if err.Error() != "ledger insert: disk full" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Wrap("query", err) != err {
		t.Fatalf("Wrap should not double wrap")
	}
	if Wrap("query", nil) != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}
	if wrapped := fmt.Errorf("service: %w", err); !errors.Is(wrapped, ErrStore) {
		t.Fatalf("wrapped StoreError lost its identity")
	}
}
