package execute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/plan"
)

// mockWriter implements Writer for testing.
type mockWriter struct {
	mu sync.Mutex
	// fail maps instance ids to errors
	fail    map[int64]error
	updates []string
	moves   []string
}

func (m *mockWriter) UpdateField(ctx context.Context, ref collection.Ref, fieldID int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, fmt.Sprintf("%d/%d=%s", ref.InstanceID, fieldID, value))
	return m.fail[ref.InstanceID]
}

func (m *mockWriter) MoveInstance(ctx context.Context, ref collection.Ref, folderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves = append(m.moves, fmt.Sprintf("%d:%d->%d", ref.InstanceID, ref.FolderID, folderID))
	return m.fail[ref.InstanceID]
}

// fakeClock advances only when the executor sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func newTestExecutor(w Writer) (*Executor, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(w, WithSleeper(clock), WithClock(clock.Now)), clock
}

func syncPlan(n int) *plan.SyncPlan {
	p := &plan.SyncPlan{FieldID: 4, FieldName: "Year"}
	for i := 1; i <= n; i++ {
		p.Changes = append(p.Changes, plan.Change{
			Title:      fmt.Sprintf("Item %d", i),
			Proposed:   fmt.Sprintf("%d", 1990+i),
			FieldID:    4,
			FolderID:   1,
			ReleaseID:  int64(i * 10),
			InstanceID: int64(i),
		})
	}
	return p
}

func TestApply_PartialFailure(t *testing.T) {
	w := &mockWriter{fail: map[int64]error{2: errors.New("HTTP 500")}}
	e, _ := newTestExecutor(w)

	res, err := e.Apply(context.Background(), syncPlan(4))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(w.updates) != 4 {
		t.Errorf("got %d writes, want 4 (later items still run)", len(w.updates))
	}
	if res.Updated != 3 || res.Attempted != 4 {
		t.Errorf("result = %+v, want 3 updated of 4", res)
	}
	if len(res.Failed) != 1 || res.Failed[0].Title != "Item 2" || res.Failed[0].InstanceID != 2 {
		t.Errorf("Failed = %+v", res.Failed)
	}
	if w.updates[0] != "1/4=1991" {
		t.Errorf("first write = %s, want 1/4=1991", w.updates[0])
	}
}

func TestApply_Pacing(t *testing.T) {
	e, clock := newTestExecutor(&mockWriter{})

	if _, err := e.Apply(context.Background(), syncPlan(21)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(clock.sleeps) != 20 {
		t.Fatalf("got %d sleeps, want 20", len(clock.sleeps))
	}
	for i, d := range clock.sleeps {
		want := 800 * time.Millisecond
		if (i+1)%10 == 0 {
			// 10 items should take 15s; 9 delays of 0.8s leave 7.8s.
			want = 7800 * time.Millisecond
		}
		if d != want {
			t.Errorf("sleep[%d] = %v, want %v", i, d, want)
		}
	}
}

func TestApply_CheckpointBehindSchedule(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	slow := &slowWriter{clock: clock, cost: 2 * time.Second}
	e := New(slow, WithSleeper(clock), WithClock(clock.Now))

	if _, err := e.Apply(context.Background(), syncPlan(11)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := clock.sleeps[9]; got != 0 {
		t.Errorf("checkpoint sleep = %v, want 0 when already behind", got)
	}
}

// slowWriter advances the clock on every write.
type slowWriter struct {
	clock *fakeClock
	cost  time.Duration
}

func (s *slowWriter) UpdateField(ctx context.Context, ref collection.Ref, fieldID int, value string) error {
	s.clock.now = s.clock.now.Add(s.cost)
	return nil
}

func (s *slowWriter) MoveInstance(ctx context.Context, ref collection.Ref, folderID int64) error {
	s.clock.now = s.clock.now.Add(s.cost)
	return nil
}

func TestApply_Empty(t *testing.T) {
	e, clock := newTestExecutor(&mockWriter{})

	res, err := e.Apply(context.Background(), &plan.SyncPlan{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Updated != 0 || len(clock.sleeps) != 0 {
		t.Errorf("result = %+v, sleeps = %v", res, clock.sleeps)
	}
}

func TestApply_ContextCancelled(t *testing.T) {
	w := &mockWriter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := newTestExecutor(w)
	res, err := e.Apply(ctx, syncPlan(3))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Apply() error = %v, want context.Canceled", err)
	}
	if res.Attempted != 0 || len(w.updates) != 0 {
		t.Errorf("expected no writes after cancellation, got %v", w.updates)
	}
}

func TestMove(t *testing.T) {
	w := &mockWriter{fail: map[int64]error{3: errors.New("HTTP 403")}}
	e, clock := newTestExecutor(w)

	p := &plan.FolderPlan{
		Folder: collection.Folder{ID: 7, Name: "Trip Hop"},
		Moves: []plan.FolderMove{
			{Title: "A", FromFolderID: 1, ToFolderID: 7, ReleaseID: 10, InstanceID: 1},
			{Title: "B", FromFolderID: 3, ToFolderID: 7, ReleaseID: 20, InstanceID: 2},
			{Title: "C", FromFolderID: 1, ToFolderID: 7, ReleaseID: 30, InstanceID: 3},
		},
	}

	res, err := e.Move(context.Background(), p)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	want := []string{"1:1->7", "2:3->7", "3:1->7"}
	if fmt.Sprint(w.moves) != fmt.Sprint(want) {
		t.Errorf("moves = %v, want %v", w.moves, want)
	}
	if res.Updated != 2 || len(res.Failed) != 1 || res.Failed[0].Title != "C" {
		t.Errorf("result = %+v", res)
	}
	if len(clock.sleeps) != 2 {
		t.Errorf("got %d sleeps, want 2", len(clock.sleeps))
	}
}
