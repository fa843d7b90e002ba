package context

import (
	"context"
	"testing"
)

func TestEventRefRoundTrip(t *testing.T) {
	ctx := WithEventRef(context.Background(), EventRef{Kind: "premium_paid", TxHash: "0xaa", BlockNumber: 10, LogIndex: 2})
	ref, ok := EventRefFromContext(ctx)
	if !ok {
		t.Fatalf("expected event ref in context")
	}
	if ref.TxHash != "0xaa" || ref.BlockNumber != 10 || ref.LogIndex != 2 {
		t.Fatalf("unexpected event ref %+v", ref)
	}
}

func TestEventRefRequiresTxHash(t *testing.T) {
	ctx := WithEventRef(context.Background(), EventRef{Kind: "premium_paid"})
	if _, ok := EventRefFromContext(ctx); ok {
		t.Fatalf("expected empty event ref to be ignored")
	}
}
