// Package session holds the per-user conversation state between updates.
package session

import (
	"encoding/json"
	"fmt"
)

// State is what input the conversation expects next. The set of states is
// closed: Idle, AwaitPickup, AwaitDropoff, AwaitWhen and AwaitPhone.
type State interface {
	Kind() string
	isState()
}

// Idle expects nothing in particular.
type Idle struct{}

// AwaitPickup expects the pickup address.
type AwaitPickup struct{}

// AwaitDropoff expects the drop-off address.
type AwaitDropoff struct{}

// AwaitWhen expects a date/time picker tap for TripID.
type AwaitWhen struct{ TripID string }

// AwaitPhone expects a phone number for TripID.
type AwaitPhone struct{ TripID string }

const (
	KindIdle         = "idle"
	KindAwaitPickup  = "await_pickup"
	KindAwaitDropoff = "await_dropoff"
	KindAwaitWhen    = "await_when"
	KindAwaitPhone   = "await_phone"
)

func (Idle) Kind() string         { return KindIdle }
func (AwaitPickup) Kind() string  { return KindAwaitPickup }
func (AwaitDropoff) Kind() string { return KindAwaitDropoff }
func (AwaitWhen) Kind() string    { return KindAwaitWhen }
func (AwaitPhone) Kind() string   { return KindAwaitPhone }

func (Idle) isState()         {}
func (AwaitPickup) isState()  {}
func (AwaitDropoff) isState() {}
func (AwaitWhen) isState()    {}
func (AwaitPhone) isState()   {}

// TripOf returns the trip id carried by s, if any.
func TripOf(s State) (string, bool) {
	switch v := s.(type) {
	case AwaitWhen:
		return v.TripID, true
	case AwaitPhone:
		return v.TripID, true
	}
	return "", false
}

type stateDoc struct {
	Kind   string `json:"kind"`
	TripID string `json:"trip_id,omitempty"`
}

// EncodeState returns the stored form of s.
func EncodeState(s State) ([]byte, error) {
	if s == nil {
		s = Idle{}
	}
	doc := stateDoc{Kind: s.Kind()}
	doc.TripID, _ = TripOf(s)
	return json.Marshal(doc)
}

// DecodeState parses the stored form produced by EncodeState.
func DecodeState(data []byte) (State, error) {
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("session: decode state: %w", err)
	}
	return fromDoc(doc)
}

func fromDoc(doc stateDoc) (State, error) {
	switch doc.Kind {
	case KindIdle, "":
		return Idle{}, nil
	case KindAwaitPickup:
		return AwaitPickup{}, nil
	case KindAwaitDropoff:
		return AwaitDropoff{}, nil
	case KindAwaitWhen, KindAwaitPhone:
		if doc.TripID == "" {
			return nil, fmt.Errorf("session: state %s without trip id", doc.Kind)
		}
		if doc.Kind == KindAwaitWhen {
			return AwaitWhen{TripID: doc.TripID}, nil
		}
		return AwaitPhone{TripID: doc.TripID}, nil
	}
	return nil, fmt.Errorf("session: unknown state %q", doc.Kind)
}
