package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memItem struct {
	data    []byte
	seq     int64
	created time.Time
}

// Memory is an in-process Store. Every operation holds a single lock, so
// conditional writes are atomic across goroutines.
type Memory struct {
	mu    sync.Mutex
	items map[Key]memItem
	seq   int64
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[Key]memItem), now: time.Now}
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) Get(ctx context.Context, key Key) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer(m.items).Get(ctx, key)
}

func (m *Memory) Put(ctx context.Context, key Key, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer(m.items).Put(ctx, key, doc)
}

func (m *Memory) PutIfAbsent(ctx context.Context, key Key, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer(m.items).PutIfAbsent(ctx, key, doc)
}

func (m *Memory) Update(ctx context.Context, key Key, patch map[string]any, cond *Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer(m.items).Update(ctx, key, patch, cond)
}

func (m *Memory) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer(m.items).Delete(ctx, key)
}

func (m *Memory) Query(ctx context.Context, pk, skPrefix string, opts QueryOptions) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	type hit struct {
		rec Record
		seq int64
	}
	var hits []hit
	for k, it := range m.items {
		if k.PK != pk || !strings.HasPrefix(k.SK, skPrefix) {
			continue
		}
		data := append([]byte(nil), it.data...)
		hits = append(hits, hit{rec: Record{Key: k, Data: data, CreatedAt: it.created}, seq: it.seq})
	}
	sort.Slice(hits, func(i, j int) bool {
		if opts.NewestFirst {
			return hits[i].seq > hits[j].seq
		}
		return hits[i].seq < hits[j].seq
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	out := make([]Record, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out, nil
}

// Transact stages writes on a copy of the data and publishes it only when fn succeeds.
func (m *Memory) Transact(ctx context.Context, fn func(tx Writer) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[Key]memItem, len(m.items))
	for k, v := range m.items {
		staged[k] = v
	}
	if err := fn(m.writer(staged)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.items = staged
	return nil
}

func (m *Memory) writer(items map[Key]memItem) *memWriter {
	return &memWriter{m: m, items: items}
}

// memWriter runs single-record operations on items; the caller holds m.mu.
type memWriter struct {
	m     *Memory
	items map[Key]memItem
}

func (w *memWriter) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it, ok := w.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), it.data...), nil
}

func (w *memWriter) Put(ctx context.Context, key Key, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if it, ok := w.items[key]; ok {
		it.data = append([]byte(nil), data...)
		w.items[key] = it
		return nil
	}
	w.insert(key, data)
	return nil
}

func (w *memWriter) PutIfAbsent(ctx context.Context, key Key, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := w.items[key]; ok {
		return ErrConditionFailed
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	w.insert(key, data)
	return nil
}

func (w *memWriter) Update(ctx context.Context, key Key, patch map[string]any, cond *Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it, ok := w.items[key]
	if !ok {
		return ErrNotFound
	}
	doc := map[string]any{}
	if err := json.Unmarshal(it.data, &doc); err != nil {
		return fmt.Errorf("kv: decode %s: %w", key, err)
	}
	if !cond.matches(doc) {
		return ErrConditionFailed
	}
	// Round-trip the patch so stored values look exactly as a JSON column would.
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("kv: encode patch: %w", err)
	}
	normalized := map[string]any{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("kv: encode patch: %w", err)
	}
	for k, v := range normalized {
		doc[k] = v
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	it.data = data
	w.items[key] = it
	return nil
}

func (w *memWriter) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(w.items, key)
	return nil
}

func (w *memWriter) insert(key Key, data []byte) {
	w.m.seq++
	w.items[key] = memItem{
		data:    append([]byte(nil), data...),
		seq:     w.m.seq,
		created: w.m.now(),
	}
}
