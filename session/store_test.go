package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/hupe1980/deckmesh/core"
	"github.com/hupe1980/deckmesh/docstore"
	"github.com/hupe1980/deckmesh/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*Store)(nil)

const (
	testApp  = "deck-analyzer"
	testUser = "founder-1"
)

func newTestStore(t *testing.T) (*Store, *docstore.InMemory) {
	t.Helper()
	db := docstore.NewInMemory()
	return New(db), db
}

func mustCreate(t *testing.T, s *Store) *core.Session {
	t.Helper()
	sess, err := s.Create(context.Background(), core.CreateRequest{AppName: testApp, UserID: testUser})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return sess
}

func TestStore_CreateAssignsIDAndTimestamps(t *testing.T) {
	s, _ := newTestStore(t)
	sess, err := s.Create(context.Background(), core.CreateRequest{
		AppName: testApp,
		UserID:  testUser,
		State:   map[string]any{"stage": "intake"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected store-assigned id")
	}
	if sess.AppName != testApp || sess.UserID != testUser {
		t.Fatalf("scope mismatch: %+v", sess)
	}
	if sess.LastUpdateTime.IsZero() {
		t.Fatal("expected server-assigned update time")
	}
	if sess.State["stage"] != "intake" {
		t.Fatalf("initial state not persisted: %v", sess.State)
	}
}

func TestStore_CreateRejectsUserProvidedID(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Create(context.Background(), core.CreateRequest{
		AppName:   testApp,
		UserID:    testUser,
		SessionID: "custom",
	})
	if !errors.Is(err, core.ErrUserProvidedID) {
		t.Fatalf("expected ErrUserProvidedID, got %v", err)
	}
	// Nothing may have been written.
	sessions, err := s.List(context.Background(), testApp, testUser)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions after rejected create, got %d", len(sessions))
	}
}

func TestStore_GetEnforcesOwnershipAtReadTime(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s)

	for _, tc := range []struct{ app, user string }{
		{testApp, "other-user"},
		{"other-app", testUser},
	} {
		got, err := s.Get(context.Background(), tc.app, tc.user, sess.ID, nil)
		if err != nil {
			t.Fatalf("get (%s/%s): %v", tc.app, tc.user, err)
		}
		if got != nil {
			t.Fatalf("existing session must degrade to not-found for foreign scope %s/%s", tc.app, tc.user)
		}
	}

	got, err := s.Get(context.Background(), testApp, testUser, sess.ID, nil)
	if err != nil || got == nil {
		t.Fatalf("owner read failed: %v %v", got, err)
	}
}

func TestStore_GetMissingSessionReturnsAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	got, err := s.Get(context.Background(), testApp, testUser, "does-not-exist", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected absent result, got %+v", got)
	}
}

func TestStore_AppendAssignsIDAndBumpsUpdateTime(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s)
	before := sess.LastUpdateTime

	time.Sleep(2 * time.Millisecond) // server timestamps must move forward
	ev := testutil.NewEventBuilder().Author("user").Invocation("inv-1").UserText("hello").Build()
	appended, err := s.AppendEvent(context.Background(), sess.ID, ev)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	// AppendEvent must overwrite any producer-set id with the store's.
	if appended.ID == "" || appended.ID == ev.ID {
		t.Fatalf("expected store-assigned event id, got %q", appended.ID)
	}

	got, err := s.Get(context.Background(), testApp, testUser, sess.ID, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Events) != 1 || got.Events[0].ID != appended.ID {
		t.Fatalf("event not readable after append: %+v", got.Events)
	}
	if !got.LastUpdateTime.After(before) {
		t.Fatalf("updateTime not refreshed: %v -> %v", before, got.LastUpdateTime)
	}
}

func TestStore_AppendToMissingSession(t *testing.T) {
	s, _ := newTestStore(t)
	ev := testutil.NewEventBuilder().Invocation("inv-1").Build()
	_, err := s.AppendEvent(context.Background(), "nope", ev)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_AppendIsAtomic(t *testing.T) {
	s, db := newTestStore(t)
	sess := mustCreate(t, s)
	before := sess.LastUpdateTime

	db.SetCommitHook(func() error { return fmt.Errorf("simulated outage") })
	ev := testutil.NewEventBuilder().Invocation("inv-1").AssistantText("lost").Build()
	_, err := s.AppendEvent(context.Background(), sess.ID, ev)

	var appendErr *core.AppendFailedError
	if !errors.As(err, &appendErr) {
		t.Fatalf("expected AppendFailedError, got %v", err)
	}
	if appendErr.SessionID != sess.ID {
		t.Fatalf("expected session id %q in error, got %q", sess.ID, appendErr.SessionID)
	}

	// Neither the event nor the timestamp touch may be observable.
	db.SetCommitHook(nil)
	got, err := s.Get(context.Background(), testApp, testUser, sess.ID, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Events) != 0 {
		t.Fatalf("event leaked from failed commit: %+v", got.Events)
	}
	if !got.LastUpdateTime.Equal(before) {
		t.Fatalf("timestamp leaked from failed commit: %v -> %v", before, got.LastUpdateTime)
	}
}

func TestStore_EventsSortedByTimestampOnRead(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s)

	base := time.Unix(1756300000, 0).UTC()
	t1, t2, t3 := base, base.Add(10*time.Second), base.Add(5*time.Second)
	// Append in call order E1(t1), E2(t2), E3(t3) with t1 < t3 < t2.
	for i, ts := range []time.Time{t1, t2, t3} {
		ev := testutil.NewEventBuilder().Invocation(fmt.Sprintf("inv-%d", i+1)).Timestamp(ts).Build()
		if _, err := s.AppendEvent(context.Background(), sess.ID, ev); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.Get(context.Background(), testApp, testUser, sess.ID, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var order []string
	for _, ev := range got.Events {
		order = append(order, ev.InvocationID)
	}
	if !reflect.DeepEqual(order, []string{"inv-1", "inv-3", "inv-2"}) {
		t.Fatalf("expected timestamp order inv-1,inv-3,inv-2, got %v", order)
	}
}

func TestStore_GetRetrievalOptions(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s)

	base := time.Unix(1756300000, 0).UTC()
	for i := 0; i < 5; i++ {
		ev := testutil.NewEventBuilder().
			Invocation(fmt.Sprintf("inv-%d", i)).
			Timestamp(base.Add(time.Duration(i) * time.Second)).
			Build()
		if _, err := s.AppendEvent(context.Background(), sess.ID, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recent, err := s.Get(context.Background(), testApp, testUser, sess.ID, &core.GetConfig{NumRecentEvents: 2})
	if err != nil {
		t.Fatalf("get recent: %v", err)
	}
	if len(recent.Events) != 2 || recent.Events[0].InvocationID != "inv-3" {
		t.Fatalf("NumRecentEvents trim wrong: %+v", recent.Events)
	}

	after, err := s.Get(context.Background(), testApp, testUser, sess.ID, &core.GetConfig{After: base.Add(2 * time.Second)})
	if err != nil {
		t.Fatalf("get after: %v", err)
	}
	if len(after.Events) != 2 || after.Events[0].InvocationID != "inv-3" {
		t.Fatalf("After trim wrong: %+v", after.Events)
	}
}

func TestStore_ApplyDeltaMergesFieldPaths(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s)
	ctx := context.Background()

	if err := s.ApplyDelta(ctx, sess.ID, map[string]any{"a": 1}); err != nil {
		t.Fatalf("delta 1: %v", err)
	}
	if err := s.ApplyDelta(ctx, sess.ID, map[string]any{"b": 2}); err != nil {
		t.Fatalf("delta 2: %v", err)
	}
	got, _ := s.Get(ctx, testApp, testUser, sess.ID, nil)
	if !reflect.DeepEqual(got.State, map[string]any{"a": 1, "b": 2}) {
		t.Fatalf("expected merged state, got %v", got.State)
	}

	if err := s.ApplyDelta(ctx, sess.ID, map[string]any{"a": 3}); err != nil {
		t.Fatalf("delta 3: %v", err)
	}
	got, _ = s.Get(ctx, testApp, testUser, sess.ID, nil)
	if !reflect.DeepEqual(got.State, map[string]any{"a": 3, "b": 2}) {
		t.Fatalf("expected overwrite of only named key, got %v", got.State)
	}
}

func TestStore_ApplyDeltaMissingSession(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.ApplyDelta(context.Background(), "nope", map[string]any{"a": 1})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListScopesByAppAndUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s)
	mustCreate(t, s)
	if _, err := s.Create(ctx, core.CreateRequest{AppName: testApp, UserID: "other-user"}); err != nil {
		t.Fatalf("create foreign: %v", err)
	}

	sessions, err := s.List(ctx, testApp, testUser)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 scoped sessions, got %d", len(sessions))
	}
	for _, sess := range sessions {
		if sess.UserID != testUser || len(sess.Events) != 0 {
			t.Fatalf("list must not load events or leak foreign sessions: %+v", sess)
		}
	}
}

func TestStore_DeleteCascadesToEvents(t *testing.T) {
	s, db := newTestStore(t)
	sess := mustCreate(t, s)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ev := testutil.NewEventBuilder().Invocation(fmt.Sprintf("inv-%d", i)).Build()
		if _, err := s.AppendEvent(ctx, sess.ID, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := s.Delete(ctx, testApp, testUser, sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.Get(ctx, testApp, testUser, sess.ID, nil)
	if err != nil || got != nil {
		t.Fatalf("expected not-found after delete, got %v %v", got, err)
	}
	// Owned event documents must be gone too, not orphaned.
	orphans, err := db.Collection("sessions").Doc(sess.ID).Collection("events").Documents(ctx)
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("expected cascade delete, found %d orphaned events", len(orphans))
	}
}

func TestStore_DeleteIsIdempotentAndOwnershipChecked(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s)
	ctx := context.Background()

	if err := s.Delete(ctx, testApp, testUser, "does-not-exist"); err != nil {
		t.Fatalf("delete missing must be a no-op, got %v", err)
	}
	if err := s.Delete(ctx, testApp, "other-user", sess.ID); err != nil {
		t.Fatalf("foreign delete must be a no-op, got %v", err)
	}
	// The foreign delete must not have removed anything.
	got, err := s.Get(ctx, testApp, testUser, sess.ID, nil)
	if err != nil || got == nil {
		t.Fatalf("session should survive foreign delete: %v %v", got, err)
	}
}

func TestStore_AppendNeverTouchesState(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess, err := s.Create(ctx, core.CreateRequest{
		AppName: testApp, UserID: testUser,
		State: map[string]any{"stage": "intake"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ev := testutil.NewEventBuilder().Invocation("inv-1").
		StateDelta(map[string]any{"stage": "hijacked"}).
		Build()
	if _, err := s.AppendEvent(ctx, sess.ID, ev); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, _ := s.Get(ctx, testApp, testUser, sess.ID, nil)
	if got.State["stage"] != "intake" {
		t.Fatalf("writer mutated state: %v", got.State)
	}
}
