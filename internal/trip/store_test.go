package trip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/ridebot/internal/kv"
)

func newTestStore(t *testing.T) (*Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	s := NewStore(mem)
	s.now = func() time.Time { return time.Unix(1758466800, 0) }
	return s, mem
}

func sampleTrip(userID int64) NewTrip {
	return NewTrip{
		UserID:  userID,
		ChatID:  userID,
		Dep:     Place{Label: "100 Main St, Miami, FL", Lat: 25.77, Lng: -80.19},
		Dest:    Place{Label: "200 Ocean Dr, Miami, FL", Lat: 25.77, Lng: -80.13},
		Miles:   1.86,
		Minutes: 10,
		Fare:    12.66,
	}
}

func TestCreateWritesBothRecords(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	tr, err := s.Create(ctx, sampleTrip(42))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(tr.ID) != 6 || tr.Status != StatusAwaitWhen {
		t.Fatalf("unexpected trip %+v", tr)
	}
	if mem.Len() != 2 {
		t.Fatalf("expected meta and mirror records, got %d", mem.Len())
	}
	got, err := s.Get(ctx, tr.ID)
	if err != nil || got.Dep.Label != "100 Main St, Miami, FL" || got.UserID != 42 {
		t.Fatalf("Get: %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, "zzzzzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRetriesOnIDCollision(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	ids := []string{"aaaaaa", "aaaaaa", "bbbbbb"}
	s.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	first, err := s.Create(ctx, sampleTrip(1))
	if err != nil || first.ID != "aaaaaa" {
		t.Fatalf("first Create: %+v, %v", first, err)
	}
	second, err := s.Create(ctx, sampleTrip(2))
	if err != nil || second.ID != "bbbbbb" {
		t.Fatalf("second Create: %+v, %v", second, err)
	}
	owner, _ := s.Get(ctx, "aaaaaa")
	if owner.UserID != 1 {
		t.Fatalf("collision overwrote existing trip: %+v", owner)
	}

	s.newID = func() (string, error) { return "aaaaaa", nil }
	if _, err := s.Create(ctx, sampleTrip(3)); !errors.Is(err, ErrIDExhausted) {
		t.Fatalf("expected ErrIDExhausted, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	tr, _ := s.Create(ctx, sampleTrip(7))

	loc := time.FixedZone("CDT", -5*3600)
	got, err := s.SetDesiredTime(ctx, tr.ID, time.Date(2025, 9, 21, 18, 20, 0, 0, loc))
	if err != nil {
		t.Fatalf("SetDesiredTime: %v", err)
	}
	if got.DesiredTimeText != "2025-09-21 18:30" || !got.HasDesiredTime() {
		t.Fatalf("unexpected desired time %q", got.DesiredTimeText)
	}
	if _, err := s.SetPhone(ctx, tr.ID, "+18505551234"); err != nil {
		t.Fatalf("SetPhone: %v", err)
	}

	if _, err := s.Transition(ctx, tr.ID, StatusPending, StatusAccepted, nil); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("accept before confirm: expected conflict, got %v", err)
	}
	if _, err := s.Transition(ctx, tr.ID, StatusAwaitWhen, StatusAccepted, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := s.Transition(ctx, tr.ID, StatusAwaitWhen, StatusPending, nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	cur, err := s.Transition(ctx, tr.ID, StatusAwaitWhen, StatusPending, nil)
	if !errors.Is(err, ErrStatusConflict) || cur.Status != StatusPending {
		t.Fatalf("second confirm: %+v, %v", cur, err)
	}

	d := &Driver{ID: 900, Name: "Alex", Car: "Camry"}
	done, err := s.Transition(ctx, tr.ID, StatusPending, StatusAccepted, d)
	if err != nil || done.DriverName != "Alex" || done.Status != StatusAccepted {
		t.Fatalf("accept: %+v, %v", done, err)
	}
	if _, err := s.Transition(ctx, tr.ID, StatusPending, StatusDeclined, nil); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("decline after accept: expected conflict, got %v", err)
	}
	if _, err := s.SetPhone(ctx, tr.ID, "+10000000000"); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("terminal trip changed phone: %v", err)
	}

	list, _ := s.ListRecent(ctx, 7, 0)
	if len(list) != 1 || list[0].Status != StatusAccepted || list[0].DriverCar != "Camry" || list[0].PassengerPhone != "+18505551234" {
		t.Fatalf("mirror not in sync: %+v", list)
	}
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	tr, _ := s.Create(ctx, sampleTrip(7))
	if _, err := s.Transition(ctx, tr.ID, StatusAwaitWhen, StatusPending, nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	const drivers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		losers  int
	)
	for i := 1; i <= drivers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			d := &Driver{ID: id, Name: fmt.Sprintf("driver-%d", id)}
			cur, err := s.Transition(ctx, tr.ID, StatusPending, StatusAccepted, d)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case errors.Is(err, ErrStatusConflict) && cur.Status == StatusAccepted:
				losers++
			default:
				t.Errorf("driver %d: unexpected %v", id, err)
			}
		}(int64(i))
	}
	wg.Wait()

	if len(winners) != 1 || losers != drivers-1 {
		t.Fatalf("winners=%v losers=%d", winners, losers)
	}
	final, _ := s.Get(ctx, tr.ID)
	if final.DriverID != winners[0] || final.Status != StatusAccepted {
		t.Fatalf("final trip %+v, winner %d", final, winners[0])
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var ids []string
	for i := 0; i < 7; i++ {
		tr, err := s.Create(ctx, sampleTrip(5))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, tr.ID)
	}
	_, _ = s.Create(ctx, sampleTrip(6))

	list, err := s.ListRecent(ctx, 5, DefaultListLimit)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 trips, got %d", len(list))
	}
	for i, tr := range list {
		if want := ids[len(ids)-1-i]; tr.ID != want {
			t.Fatalf("position %d: got %s want %s", i, tr.ID, want)
		}
	}
}

func TestRepairRestoresMirror(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)
	tr, _ := s.Create(ctx, sampleTrip(9))

	changed, err := s.Repair(ctx, tr.ID)
	if err != nil || changed {
		t.Fatalf("repair of consistent trip: %v %v", changed, err)
	}

	// Simulate a mirror left behind by a partial write.
	_ = mem.Update(ctx, userTripKey(9, tr.ID), map[string]any{"status": "await_when", "fare": 1}, nil)
	_, _ = s.Transition(ctx, tr.ID, StatusAwaitWhen, StatusPending, nil)
	_ = mem.Update(ctx, userTripKey(9, tr.ID), map[string]any{"status": "await_when"}, nil)

	changed, err = s.Repair(ctx, tr.ID)
	if err != nil || !changed {
		t.Fatalf("repair: %v %v", changed, err)
	}
	list, _ := s.ListRecent(ctx, 9, 1)
	if list[0].Status != StatusPending || list[0].Fare != 12.66 {
		t.Fatalf("mirror not repaired: %+v", list[0])
	}

	_ = mem.Delete(ctx, userTripKey(9, tr.ID))
	if changed, err := s.Repair(ctx, tr.ID); err != nil || !changed {
		t.Fatalf("repair of missing mirror: %v %v", changed, err)
	}
	if _, err := s.Repair(ctx, "nope00"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfilePhone(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	phone, err := s.SavedPhone(ctx, 11)
	if err != nil || phone != "" {
		t.Fatalf("SavedPhone on empty profile: %q %v", phone, err)
	}
	if err := s.SavePhone(ctx, 11, "+18505551234"); err != nil {
		t.Fatalf("SavePhone: %v", err)
	}
	p, err := s.GetProfile(ctx, 11)
	if err != nil || p.Phone != "+18505551234" || p.UpdatedAt != 1758466800 {
		t.Fatalf("GetProfile: %+v %v", p, err)
	}
}
