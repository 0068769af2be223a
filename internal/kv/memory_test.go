package kv

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := Key{PK: "TRIP#abc123", SK: "META"}

	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, key, map[string]any{"status": "await_when"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := decode(t, data)["status"]; got != "await_when" {
		t.Fatalf("unexpected status %v", got)
	}
	if err := s.PutIfAbsent(ctx, key, map[string]any{}); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed, got %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestMemoryConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := Key{PK: "TRIP#abc123", SK: "META"}
	if err := s.Put(ctx, key, map[string]any{"status": "pending", "price": 12.5}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	err := s.Update(ctx, key, map[string]any{"status": "accepted"}, AttrIn("status", "await_when"))
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed, got %v", err)
	}
	if err := s.Update(ctx, key, map[string]any{"status": "accepted", "driver_id": int64(7)}, AttrIn("status", "pending")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	data, _ := s.Get(ctx, key)
	doc := decode(t, data)
	if doc["status"] != "accepted" || doc["driver_id"] != float64(7) || doc["price"] != 12.5 {
		t.Fatalf("unexpected document %v", doc)
	}

	missing := Key{PK: "TRIP#nope00", SK: "META"}
	if err := s.Update(ctx, missing, map[string]any{"a": 1}, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryQueryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	for _, sk := range []string{"TRIP#c", "TRIP#a", "PROFILE", "TRIP#b"} {
		if err := s.Put(ctx, Key{PK: "USER#1", SK: sk}, map[string]any{"sk": sk}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	_ = s.Put(ctx, Key{PK: "USER#2", SK: "TRIP#z"}, map[string]any{})

	recs, err := s.Query(ctx, "USER#1", "TRIP#", QueryOptions{NewestFirst: true, Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(recs) != 2 || recs[0].Key.SK != "TRIP#b" || recs[1].Key.SK != "TRIP#a" {
		t.Fatalf("unexpected records %+v", recs)
	}

	recs, _ = s.Query(ctx, "USER#1", "TRIP#", QueryOptions{})
	if len(recs) != 3 || recs[0].Key.SK != "TRIP#c" {
		t.Fatalf("unexpected oldest-first records %+v", recs)
	}
}

func TestMemoryTransactRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	a := Key{PK: "TRIP#a", SK: "META"}
	_ = s.Put(ctx, a, map[string]any{"status": "pending"})

	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx Writer) error {
		if err := tx.Update(ctx, a, map[string]any{"status": "accepted"}, nil); err != nil {
			return err
		}
		if err := tx.Put(ctx, Key{PK: "USER#1", SK: "TRIP#a"}, map[string]any{}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	data, _ := s.Get(ctx, a)
	if decode(t, data)["status"] != "pending" || s.Len() != 1 {
		t.Fatalf("transaction leaked writes")
	}

	err = s.Transact(ctx, func(tx Writer) error {
		return tx.Put(ctx, Key{PK: "USER#1", SK: "TRIP#a"}, map[string]any{})
	})
	if err != nil || s.Len() != 2 {
		t.Fatalf("commit failed: %v (len %d)", err, s.Len())
	}
}

func TestMemoryConditionalUpdateSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := Key{PK: "TRIP#race00", SK: "META"}
	_ = s.Put(ctx, key, map[string]any{"status": "pending"})

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, key, map[string]any{"status": "accepted"}, AttrIn("status", "pending"))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, ErrConditionFailed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
