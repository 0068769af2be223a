package trip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/internal/kv"
	"github.com/m3rciful/ridebot/internal/slots"
)

const (
	component = "trip"

	// DefaultListLimit bounds ListRecent when no limit is given.
	DefaultListLimit = 5
	maxIDAttempts    = 5
)

func userPK(userID int64) string { return "USER#" + strconv.FormatInt(userID, 10) }

func metaKey(id string) kv.Key { return kv.Key{PK: "TRIP#" + id, SK: "META"} }

func userTripKey(userID int64, id string) kv.Key {
	return kv.Key{PK: userPK(userID), SK: "TRIP#" + id}
}

func profileKey(userID int64) kv.Key { return kv.Key{PK: userPK(userID), SK: "PROFILE"} }

// Store reads and writes trips and profiles.
type Store struct {
	kv    kv.Store
	now   func() time.Time
	newID func() (string, error)
}

// NewStore returns a Store backed by s.
func NewStore(s kv.Store) *Store {
	return &Store{kv: s, now: time.Now, newID: NewID}
}

// Create persists a new trip in status await_when. The by-id record is
// claimed with a conditional put so an id collision picks a new id.
func (s *Store) Create(ctx context.Context, in NewTrip) (*Trip, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("trip: new id: %w", err)
		}
		t := &Trip{
			ID:        id,
			UserID:    in.UserID,
			ChatID:    in.ChatID,
			Username:  in.Username,
			Dep:       in.Dep,
			Dest:      in.Dest,
			Miles:     in.Miles,
			Minutes:   in.Minutes,
			Fare:      in.Fare,
			Status:    StatusAwaitWhen,
			CreatedAt: s.now().Unix(),
		}
		err = s.kv.Transact(ctx, func(tx kv.Writer) error {
			if err := tx.PutIfAbsent(ctx, metaKey(id), t); err != nil {
				return err
			}
			return tx.Put(ctx, userTripKey(in.UserID, id), t)
		})
		if errors.Is(err, kv.ErrConditionFailed) {
			logger.Warn(ctx, component, "trip.id_collision",
				slog.String("trip_id", id),
				slog.Int("attempts", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("trip: create: %w", err)
		}
		logger.Info(ctx, component, "trip.create",
			slog.String("status", "ok"),
			slog.String("trip_id", id),
			slog.Int64("user_id", in.UserID),
			slog.Float64("fare", in.Fare),
		)
		return t, nil
	}
	return nil, ErrIDExhausted
}

// Get returns the authoritative by-id record.
func (s *Store) Get(ctx context.Context, id string) (*Trip, error) {
	return get(ctx, s.kv, id)
}

func get(ctx context.Context, r interface {
	Get(context.Context, kv.Key) ([]byte, error)
}, id string) (*Trip, error) {
	data, err := r.Get(ctx, metaKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("trip: get %s: %w", id, err)
	}
	var t Trip
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("trip: decode %s: %w", id, err)
	}
	return &t, nil
}

// SetDesiredTime stores when (rounded up to a quarter hour) as the pickup time.
// Trips in a terminal status are left untouched.
func (s *Store) SetDesiredTime(ctx context.Context, id string, when time.Time) (*Trip, error) {
	when = slots.RoundTo15(when)
	return s.apply(ctx, id, map[string]any{
		"desired_time_text":  slots.FormatWhen(when),
		"desired_time_epoch": when.Unix(),
	}, StatusAwaitWhen, StatusPending)
}

// SetPhone attaches the passenger contact number.
func (s *Store) SetPhone(ctx context.Context, id, phone string) (*Trip, error) {
	return s.apply(ctx, id, map[string]any{"passenger_phone": phone}, StatusAwaitWhen, StatusPending)
}

// Transition moves the trip from -> to. The status check and both writes run
// in one transaction; when the trip is no longer in from, the current trip is
// returned with ErrStatusConflict. d is attached when non-nil.
func (s *Store) Transition(ctx context.Context, id string, from, to Status, d *Driver) (*Trip, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	patch := map[string]any{"status": string(to)}
	if d != nil {
		patch["driver_id"] = d.ID
		patch["driver_name"] = d.Name
		patch["driver_car"] = d.Car
	}
	t, err := s.apply(ctx, id, patch, from)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	logger.Info(ctx, component, "trip.transition",
		slog.String("status", status),
		slog.String("trip_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return t, err
}

func (s *Store) apply(ctx context.Context, id string, patch map[string]any, allowed ...Status) (*Trip, error) {
	in := make([]string, len(allowed))
	for i, st := range allowed {
		in[i] = string(st)
	}
	var out *Trip
	err := s.kv.Transact(ctx, func(tx kv.Writer) error {
		if err := tx.Update(ctx, metaKey(id), patch, kv.AttrIn("status", in...)); err != nil {
			return err
		}
		t, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		// A missing mirror is rebuilt from the by-id record.
		err = tx.Update(ctx, userTripKey(t.UserID, id), patch, nil)
		if errors.Is(err, kv.ErrNotFound) {
			err = tx.Put(ctx, userTripKey(t.UserID, id), t)
		}
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, kv.ErrNotFound), errors.Is(err, ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, kv.ErrConditionFailed):
		cur, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return cur, ErrStatusConflict
	default:
		return nil, fmt.Errorf("trip: update %s: %w", id, err)
	}
}

// ListRecent returns up to limit trips of the user, newest first.
func (s *Store) ListRecent(ctx context.Context, userID int64, limit int) ([]Trip, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	recs, err := s.kv.Query(ctx, userPK(userID), "TRIP#", kv.QueryOptions{Limit: limit, NewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("trip: list %d: %w", userID, err)
	}
	out := make([]Trip, 0, len(recs))
	for _, r := range recs {
		var t Trip
		if err := json.Unmarshal(r.Data, &t); err != nil {
			logger.Warn(ctx, component, "trip.list",
				slog.String("status", "skip"),
				slog.String("sk", r.Key.SK),
				slog.String("err", err.Error()),
			)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Repair rewrites the user mirror of trip id from the by-id record and
// reports whether the mirror differed.
func (s *Store) Repair(ctx context.Context, id string) (bool, error) {
	changed := false
	err := s.kv.Transact(ctx, func(tx kv.Writer) error {
		t, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		want, err := json.Marshal(t)
		if err != nil {
			return err
		}
		key := userTripKey(t.UserID, id)
		have, err := tx.Get(ctx, key)
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		if err == nil {
			var mirror Trip
			if json.Unmarshal(have, &mirror) == nil {
				if canon, _ := json.Marshal(mirror); bytes.Equal(canon, want) {
					return nil
				}
			}
		}
		changed = true
		return tx.Put(ctx, key, want)
	})
	if errors.Is(err, ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("trip: repair %s: %w", id, err)
	}
	logger.Info(ctx, component, "trip.repair",
		slog.String("status", "ok"),
		slog.String("trip_id", id),
		slog.Bool("changed", changed),
	)
	return changed, nil
}

// GetProfile returns the user's profile, or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	data, err := s.kv.Get(ctx, profileKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("trip: get profile %d: %w", userID, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("trip: decode profile %d: %w", userID, err)
	}
	return &p, nil
}

// SavedPhone returns the stored phone, or "" when the user has none.
func (s *Store) SavedPhone(ctx context.Context, userID int64) (string, error) {
	p, err := s.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return p.Phone, nil
}

// SavePhone overwrites the user's profile phone.
func (s *Store) SavePhone(ctx context.Context, userID int64, phone string) error {
	p := Profile{UserID: userID, Phone: phone, UpdatedAt: s.now().Unix()}
	if err := s.kv.Put(ctx, profileKey(userID), p); err != nil {
		return fmt.Errorf("trip: save profile %d: %w", userID, err)
	}
	return nil
}
