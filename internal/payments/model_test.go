package payments

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]string{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusSuccess},
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusSuccess},
		{StatusProcessing, StatusFailed},
		{StatusSuccess, StatusReversed},
	}
	for _, edge := range legal {
		if !CanTransition(edge[0], edge[1]) {
			t.Errorf("expected %s -> %s to be legal", edge[0], edge[1])
		}
	}

	illegal := [][2]string{
		{StatusPending, StatusReversed},
		{StatusProcessing, StatusReversed},
		{StatusFailed, StatusReversed},
		{StatusFailed, StatusSuccess},
		{StatusReversed, StatusPending},
		{StatusSuccess, StatusPending},
		{StatusSuccess, StatusProcessing},
	}
	for _, edge := range illegal {
		if CanTransition(edge[0], edge[1]) {
			t.Errorf("expected %s -> %s to be rejected", edge[0], edge[1])
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, status := range []string{StatusSuccess, StatusFailed, StatusReversed} {
		if !Terminal(status) {
			t.Errorf("expected %s to be terminal", status)
		}
	}
	for _, status := range []string{StatusPending, StatusProcessing} {
		if Terminal(status) {
			t.Errorf("expected %s to be non-terminal", status)
		}
	}
}

func TestNormalizeRecomputesNet(t *testing.T) {
	tx := Transaction{
		Amount:    decimal.RequireFromString("100.555"),
		Fee:       decimal.RequireFromString("0.444"),
		NetAmount: decimal.RequireFromString("55"),
	}
	tx.Normalize()

	if got := tx.Amount.StringFixed(2); got != "100.56" {
		t.Fatalf("expected amount 100.56, got %s", got)
	}
	if got := tx.Fee.StringFixed(2); got != "0.44" {
		t.Fatalf("expected fee 0.44, got %s", got)
	}
	if got := tx.NetAmount.StringFixed(2); got != "100.12" {
		t.Fatalf("expected net 100.12, got %s", got)
	}
}

func TestNewReference(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		ref := NewReference()
		if !strings.HasPrefix(ref, "TXN_") {
			t.Fatalf("missing prefix: %s", ref)
		}
		if len(ref) != 36 {
			t.Fatalf("expected 36 characters, got %d in %s", len(ref), ref)
		}
		if strings.ToUpper(ref) != ref {
			t.Fatalf("expected uppercase reference, got %s", ref)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %s", ref)
		}
		seen[ref] = struct{}{}
	}
}

func TestNewReferenceTimeOrdered(t *testing.T) {
	first := NewReference()
	time.Sleep(2 * time.Millisecond)
	second := NewReference()
	if first >= second {
		t.Fatalf("expected references to sort by creation time: %s >= %s", first, second)
	}
}
