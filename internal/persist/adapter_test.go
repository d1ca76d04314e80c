package persist

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"convo/internal/bus"
	"convo/internal/kv"
	"convo/internal/model"
	"convo/internal/seed"
	"convo/internal/store"
)

func testKV(t *testing.T) *kv.DB {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHydrateSeedsEmptyStore(t *testing.T) {
	db := testKV(t)
	s := store.New(nil, nil)
	a := NewAdapter(db, s, nil, nil)

	a.Hydrate()

	contacts := s.Contacts()
	if len(contacts) != len(seed.Contacts()) {
		t.Fatalf("contacts = %d, want seed set of %d", len(contacts), len(seed.Contacts()))
	}
	prefs := s.Preferences()
	if !prefs.NotifyEnabled || !prefs.ReadReceipts {
		t.Errorf("preferences = %+v, want seed defaults", prefs)
	}
}

func TestHydrateFallsBackOnCorruptData(t *testing.T) {
	db := testKV(t)
	if err := db.Set("contacts", []byte("{{{ not json")); err != nil {
		t.Fatal(err)
	}
	if err := db.Set("preferences", []byte("also not json")); err != nil {
		t.Fatal(err)
	}

	s := store.New(nil, nil)
	a := NewAdapter(db, s, nil, nil)

	// Must not panic or error out; corrupt keys fall back to seed silently.
	a.Hydrate()

	if len(s.Contacts()) != len(seed.Contacts()) {
		t.Error("corrupt contacts did not fall back to seed")
	}
}

func TestFlushAndRehydrateRoundTrip(t *testing.T) {
	db := testKV(t)

	s1 := store.New(nil, nil)
	a1 := NewAdapter(db, s1, nil, nil)
	a1.Hydrate()

	s1.Send("1", "persist me", nil, nil)
	s1.UpdatePreferences(func(p *model.Preferences) { p.DarkBubbles = true })
	a1.Flush()

	// A fresh store hydrated from the same db sees the written state.
	s2 := store.New(nil, nil)
	a2 := NewAdapter(db, s2, nil, nil)
	a2.Hydrate()

	conv, ok := s2.Conversation(model.ConversationKey("1"))
	if !ok || len(conv.Messages) != 1 {
		t.Fatalf("rehydrated conversation missing message: ok=%v", ok)
	}
	if conv.Messages[0].Text != "persist me" {
		t.Errorf("text = %q", conv.Messages[0].Text)
	}
	if !s2.Preferences().DarkBubbles {
		t.Error("preferences did not round-trip")
	}
}

func TestWriteThroughOnBusEvent(t *testing.T) {
	db := testKV(t)
	b := bus.New()
	s := store.New(b, nil)
	a := NewAdapter(db, s, b, nil)
	a.Hydrate()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)
	defer a.Stop()

	s.Send("2", "write through", nil, nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		raw, ok, err := db.Get("conversations")
		if err != nil {
			t.Fatal(err)
		}
		if ok && strings.Contains(string(raw), "write through") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("mutation was not written through")
}
