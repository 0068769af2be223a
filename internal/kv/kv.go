// Package kv is a small partition/sort-key document store with conditional
// writes. Documents are JSON objects; Update merges a patch into the stored
// object at the top level.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no record exists under the key.
	ErrNotFound = errors.New("kv: not found")
	// ErrConditionFailed is returned when a conditional write did not apply.
	ErrConditionFailed = errors.New("kv: condition failed")
)

// Key addresses one record: an entity scope plus a sort discriminator.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string { return k.PK + "/" + k.SK }

// Record is a stored document returned by Query.
type Record struct {
	Key       Key
	Data      []byte
	CreatedAt time.Time
}

// Condition restricts a write to records whose string attribute Attr
// currently holds one of In.
type Condition struct {
	Attr string
	In   []string
}

// AttrIn builds a Condition.
func AttrIn(attr string, values ...string) *Condition {
	return &Condition{Attr: attr, In: values}
}

func (c *Condition) matches(doc map[string]any) bool {
	if c == nil {
		return true
	}
	v, ok := doc[c.Attr].(string)
	if !ok {
		return false
	}
	for _, want := range c.In {
		if v == want {
			return true
		}
	}
	return false
}

// QueryOptions controls Query ordering and size. Records are ordered by
// creation time; Limit <= 0 means no limit.
type QueryOptions struct {
	Limit       int
	NewestFirst bool
}

// Writer is the set of single-record operations, also available inside a transaction.
type Writer interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Put(ctx context.Context, key Key, doc any) error
	PutIfAbsent(ctx context.Context, key Key, doc any) error
	Update(ctx context.Context, key Key, patch map[string]any, cond *Condition) error
	Delete(ctx context.Context, key Key) error
}

// Store is the full storage contract used by the trip and session stores.
type Store interface {
	Writer
	// Query lists records of a partition whose sort key starts with skPrefix.
	Query(ctx context.Context, pk, skPrefix string, opts QueryOptions) ([]Record, error)
	// Transact runs fn atomically: either every write inside fn applies or none does.
	Transact(ctx context.Context, fn func(tx Writer) error) error
}

func encode(doc any) ([]byte, error) {
	switch v := doc.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("kv: encode document: %w", err)
	}
	return data, nil
}
