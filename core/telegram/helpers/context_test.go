package helpers

import (
	"context"
	"testing"
)

func TestCounters(t *testing.T) {
	ctx := WithCounters(context.Background())
	if same := WithCounters(ctx); same != ctx {
		t.Fatalf("WithCounters replaced existing counters")
	}
	CountMessage(ctx, false)
	CountMessage(ctx, true)
	CountMessage(ctx, false)
	msgs, kb := GetCounters(ctx)
	if msgs != 3 || !kb {
		t.Fatalf("GetCounters = %d, %v", msgs, kb)
	}

	CountMessage(context.Background(), true)
	if msgs, kb := GetCounters(context.Background()); msgs != 0 || kb {
		t.Fatalf("expected zero counters without WithCounters")
	}
}
