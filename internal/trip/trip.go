// Package trip persists ride requests and passenger profiles and enforces the
// trip lifecycle await_when -> pending -> accepted | declined.
package trip

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Status is the lifecycle position of a trip.
type Status string

const (
	StatusAwaitWhen Status = "await_when"
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
)

// Terminal reports whether no further status change is permitted.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusAwaitWhen:
		return to == StatusPending
	case StatusPending:
		return to == StatusAccepted || to == StatusDeclined
	}
	return false
}

var (
	// ErrNotFound is returned when no trip exists under the id.
	ErrNotFound = errors.New("trip: not found")
	// ErrStatusConflict is returned when the trip is not in an expected status.
	ErrStatusConflict = errors.New("trip: status conflict")
	// ErrIDExhausted is returned when no free trip id was found.
	ErrIDExhausted = errors.New("trip: could not allocate a unique id")
	// ErrInvalidTransition is returned for edges outside the lifecycle.
	ErrInvalidTransition = errors.New("trip: invalid transition")
)

// Place is a resolved address.
type Place struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// Driver identifies the driver attached to an accepted trip.
type Driver struct {
	ID   int64
	Name string
	Car  string
}

// Trip is one booking attempt. The same document is stored under the trip id
// and under the requesting user; the by-id copy is authoritative.
type Trip struct {
	ID               string  `json:"trip_id"`
	UserID           int64   `json:"user_id"`
	ChatID           int64   `json:"user_chat_id"`
	Username         string  `json:"username,omitempty"`
	Dep              Place   `json:"dep"`
	Dest             Place   `json:"dest"`
	Miles            float64 `json:"miles"`
	Minutes          int     `json:"minutes"`
	Fare             float64 `json:"fare"`
	DesiredTimeText  string  `json:"desired_time_text,omitempty"`
	DesiredTimeEpoch int64   `json:"desired_time_epoch,omitempty"`
	PassengerPhone   string  `json:"passenger_phone,omitempty"`
	Status           Status  `json:"status"`
	DriverID         int64   `json:"driver_id,omitempty"`
	DriverName       string  `json:"driver_name,omitempty"`
	DriverCar        string  `json:"driver_car,omitempty"`
	CreatedAt        int64   `json:"created_at"`
}

// HasDesiredTime reports whether a pickup time was chosen.
func (t *Trip) HasDesiredTime() bool { return t.DesiredTimeText != "" }

// HasPhone reports whether a contact number is attached.
func (t *Trip) HasPhone() bool { return t.PassengerPhone != "" }

// NewTrip carries the fields known when a quote is accepted.
type NewTrip struct {
	UserID   int64
	ChatID   int64
	Username string
	Dep      Place
	Dest     Place
	Miles    float64
	Minutes  int
	Fare     float64
}

// Profile is the durable per-user record reused across trips.
type Profile struct {
	UserID    int64  `json:"user_id"`
	Phone     string `json:"phone"`
	UpdatedAt int64  `json:"updated_at"`
}

const (
	idLength   = 6
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewID returns a random 6 character [a-z0-9] identifier.
func NewID() (string, error) {
	max := big.NewInt(int64(len(idAlphabet)))
	buf := make([]byte, idLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = idAlphabet[n.Int64()]
	}
	return string(buf), nil
}
