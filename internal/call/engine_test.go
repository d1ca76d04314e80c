package call

import (
	"errors"
	"testing"
	"time"

	"convo/internal/media"
	"convo/internal/model"
	"convo/internal/store"
)

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s := store.New(nil, nil)
	s.Hydrate(
		[]model.Contact{
			{ID: "1", Name: "Ana"},
			{ID: "2", Name: "Bruno"},
			{ID: "3", Name: "Clara"},
		},
		nil,
		model.Preferences{},
	)
	e := NewEngine(s, nil, nil, Config{
		DialDelay:   20 * time.Millisecond,
		EndedLinger: 30 * time.Millisecond,
	})
	return e, s
}

// fixClock pins the engine clock and returns an advance function.
func fixClock(e *Engine) func(time.Duration) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func notices(t *testing.T, s *store.Store, contactID string) []model.Message {
	t.Helper()
	conv, ok := s.Conversation(model.ConversationKey(contactID))
	if !ok {
		return nil
	}
	var out []model.Message
	for _, m := range conv.Messages {
		if m.Type == model.TypeCall {
			out = append(out, m)
		}
	}
	return out
}

func TestStartCreatesMirroredPair(t *testing.T) {
	e, _ := testEngine(t)

	callID, err := e.Start(MediaAudio, "1", "2")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	caller, ok := e.Get("1")
	if !ok {
		t.Fatal("caller record missing")
	}
	callee, ok := e.Get("2")
	if !ok {
		t.Fatal("callee record missing")
	}

	if caller.Status != StateDialing || caller.Direction != DirectionOutgoing {
		t.Errorf("caller = %s/%s, want dialing/outgoing", caller.Status, caller.Direction)
	}
	if callee.Status != StateRinging || callee.Direction != DirectionIncoming {
		t.Errorf("callee = %s/%s, want ringing/incoming", callee.Status, callee.Direction)
	}
	if caller.CallID != callID || callee.CallID != callID {
		t.Error("mirrored records do not share the call id")
	}
	if !caller.StartedAt.Equal(callee.StartedAt) {
		t.Error("mirrored records do not share StartedAt")
	}
	if caller.PeerID != "2" || callee.PeerID != "1" {
		t.Errorf("peer ids = %q/%q", caller.PeerID, callee.PeerID)
	}
}

func TestDialTransitionsToRingingAfterDelay(t *testing.T) {
	e, _ := testEngine(t)

	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(80 * time.Millisecond)

	caller, _ := e.Get("1")
	if caller.Status != StateRinging {
		t.Errorf("caller status = %s after dial delay, want ringing", caller.Status)
	}
}

func TestStaleDialTimerDiscarded(t *testing.T) {
	e, _ := testEngine(t)

	first, err := e.Start(MediaAudio, "1", "2")
	if err != nil {
		t.Fatal(err)
	}
	// Replace before the dial timer fires.
	second, err := e.Start(MediaAudio, "1", "2")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("expected a fresh call id")
	}

	time.Sleep(80 * time.Millisecond)

	caller, ok := e.Get("1")
	if !ok {
		t.Fatal("caller record missing")
	}
	if caller.CallID != second {
		t.Errorf("live call id = %q, want the replacement %q", caller.CallID, second)
	}
	// The replacement's own timer moves it to ringing; the stale timer from
	// the first call must not have touched it earlier or revived anything.
	if caller.Status != StateRinging {
		t.Errorf("caller status = %s, want ringing", caller.Status)
	}
}

func TestAnswerConnectsBothWithSharedAcceptedAt(t *testing.T) {
	e, _ := testEngine(t)
	fixClock(e)

	if _, err := e.Start(MediaVideo, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.Answer("2")

	caller, _ := e.Get("1")
	callee, _ := e.Get("2")
	if caller.Status != StateConnected || callee.Status != StateConnected {
		t.Errorf("statuses = %s/%s, want connected/connected", caller.Status, callee.Status)
	}
	if !caller.AcceptedAt.Equal(callee.AcceptedAt) || caller.AcceptedAt.IsZero() {
		t.Error("mirrored records do not share AcceptedAt")
	}
}

func TestAnswerWithoutRingingCounterpartIsNoOp(t *testing.T) {
	e, _ := testEngine(t)

	// Idle slot.
	e.Answer("2")
	if _, ok := e.Get("2"); ok {
		t.Fatal("answer on idle slot created a record")
	}

	// Missing mirrored counterpart.
	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.mu.Lock()
	delete(e.calls, "1")
	e.mu.Unlock()

	e.Answer("2")
	callee, _ := e.Get("2")
	if callee.Status != StateRinging {
		t.Errorf("status = %s after orphan answer, want ringing", callee.Status)
	}
}

func TestEndAnsweredCallLogsDuration(t *testing.T) {
	e, s := testEngine(t)
	advance := fixClock(e)

	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.Answer("2")
	advance(5 * time.Second)
	e.End("1")

	caller, _ := e.Get("1")
	callee, _ := e.Get("2")
	if caller.Status != StateEnded || callee.Status != StateEnded {
		t.Errorf("statuses = %s/%s, want ended/ended", caller.Status, callee.Status)
	}
	if !caller.EndedAt.Equal(callee.EndedAt) {
		t.Error("mirrored records do not share EndedAt")
	}

	ender := notices(t, s, "1")
	if len(ender) != 1 || ender[0].Text != "Call ended (00:05)" {
		t.Errorf("ender notices = %+v, want one 'Call ended (00:05)'", ender)
	}
	peer := notices(t, s, "2")
	if len(peer) != 1 || peer[0].Text != "Missed audio call from Ana" {
		t.Errorf("peer notices = %+v, want one 'Missed audio call from Ana'", peer)
	}
}

func TestEndNeverAnsweredHasZeroDuration(t *testing.T) {
	e, s := testEngine(t)
	fixClock(e)

	if _, err := e.Start(MediaVideo, "2", "3"); err != nil {
		t.Fatal(err)
	}
	e.End("2")

	ender := notices(t, s, "2")
	if len(ender) != 1 || ender[0].Text != "Call ended (00:00)" {
		t.Errorf("ender notices = %+v, want one zero-duration notice", ender)
	}
	peer := notices(t, s, "3")
	if len(peer) != 1 || peer[0].Text != "Missed video call from Bruno" {
		t.Errorf("peer notices = %+v", peer)
	}
}

func TestEndIdempotent(t *testing.T) {
	e, s := testEngine(t)
	fixClock(e)

	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.End("1")
	e.End("1")
	e.End("2")

	if got := len(notices(t, s, "1")) + len(notices(t, s, "2")); got != 2 {
		t.Errorf("total notices = %d, want exactly one per side", got)
	}
}

func TestEndedRecordsRemovedAfterLinger(t *testing.T) {
	e, _ := testEngine(t)

	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.End("1")

	// Records linger briefly so a UI can show the ended state.
	if rec, ok := e.Get("1"); !ok || rec.Status != StateEnded {
		t.Fatal("ended record missing during linger")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := e.Get("1"); ok {
		t.Error("caller record still present after linger")
	}
	if _, ok := e.Get("2"); ok {
		t.Error("callee record still present after linger")
	}
}

func TestStartForceEndsExistingCalls(t *testing.T) {
	e, s := testEngine(t)
	fixClock(e)

	first, err := e.Start(MediaAudio, "1", "2")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Start(MediaAudio, "1", "3")
	if err != nil {
		t.Fatal(err)
	}

	// The old pair was force-ended: slot 2 holds the ended leg until the
	// linger removes it.
	old, ok := e.Get("2")
	if !ok || old.CallID != first || old.Status != StateEnded {
		t.Errorf("old callee leg = %+v, want ended record of the first call", old)
	}

	// New pair is live on slots 1 and 3.
	caller, _ := e.Get("1")
	callee, _ := e.Get("3")
	if caller.CallID != second || callee.CallID != second {
		t.Error("new mirrored pair not in place")
	}

	// Never more than one non-ended call per slot.
	for _, id := range []string{"1", "2", "3"} {
		if rec, ok := e.Get(id); ok && rec.Status != StateEnded && rec.CallID != second {
			t.Errorf("slot %s carries a live record of an old call", id)
		}
	}

	// Force-ending logged the old call on both its sides.
	if got := len(notices(t, s, "1")) + len(notices(t, s, "2")); got != 2 {
		t.Errorf("force-end notices = %d, want 2", got)
	}
}

func TestLocalFlagsNotMirrored(t *testing.T) {
	e, _ := testEngine(t)

	if _, err := e.Start(MediaVideo, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.Answer("2")

	e.ToggleMic("1")
	e.ToggleCamera("1")
	e.SetDocked("1", true)

	caller, _ := e.Get("1")
	callee, _ := e.Get("2")
	if !caller.MicMuted || !caller.CamOff || !caller.Docked {
		t.Errorf("caller flags = %+v, want all set", caller)
	}
	if callee.MicMuted || callee.CamOff || callee.Docked {
		t.Error("local flags leaked to the mirrored record")
	}
	if caller.Status != callee.Status {
		t.Error("status diverged after local toggles")
	}

	e.ToggleMic("1")
	caller, _ = e.Get("1")
	if caller.MicMuted {
		t.Error("second toggle did not flip mic back")
	}
}

func TestConnectedTickerCountsAndStops(t *testing.T) {
	e, _ := testEngine(t)
	e.tickEvery = 10 * time.Millisecond

	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.Answer("2")

	time.Sleep(60 * time.Millisecond)

	caller, _ := e.Get("1")
	callee, _ := e.Get("2")
	if caller.ConnectedSecs == 0 {
		t.Error("connected counter did not advance")
	}
	// Both counters advance in the same locked step; the two reads here are
	// separate snapshots, so allow a single tick between them.
	if diff := callee.ConnectedSecs - caller.ConnectedSecs; diff < 0 || diff > 1 {
		t.Errorf("counters diverged: %d vs %d", caller.ConnectedSecs, callee.ConnectedSecs)
	}

	e.End("2")
	ended, _ := e.Get("1")
	frozen := ended.ConnectedSecs
	time.Sleep(40 * time.Millisecond)
	if rec, ok := e.Get("1"); ok && rec.ConnectedSecs != frozen {
		t.Error("counter advanced after end")
	}
}

func TestAnswerResetsConnectedCounter(t *testing.T) {
	e, _ := testEngine(t)
	e.tickEvery = 10 * time.Millisecond

	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.Answer("2")
	time.Sleep(40 * time.Millisecond)
	e.End("1")

	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}
	e.Answer("2")

	caller, _ := e.Get("1")
	if caller.ConnectedSecs > 1 {
		t.Errorf("counter = %d after fresh answer, want reset", caller.ConnectedSecs)
	}
}

func TestStartAbortsWhenDeviceUnavailable(t *testing.T) {
	s := store.New(nil, nil)
	e := NewEngine(s, nil, nil, Config{
		DialDelay:   20 * time.Millisecond,
		EndedLinger: 30 * time.Millisecond,
		Probe:       func() error { return media.ErrDeviceUnavailable },
	})

	_, err := e.Start(MediaAudio, "1", "2")
	if !errors.Is(err, media.ErrDeviceUnavailable) {
		t.Fatalf("Start() = %v, want ErrDeviceUnavailable", err)
	}
	if _, ok := e.Get("1"); ok {
		t.Error("record created despite unavailable device")
	}
	if _, ok := e.Get("2"); ok {
		t.Error("mirrored record created despite unavailable device")
	}
}

func TestScenarioAudioCallLifecycle(t *testing.T) {
	e, s := testEngine(t)
	advance := fixClock(e)

	// Start: caller dialing, callee ringing immediately.
	if _, err := e.Start(MediaAudio, "1", "2"); err != nil {
		t.Fatal(err)
	}
	callee, _ := e.Get("2")
	if callee.Status != StateRinging {
		t.Fatalf("callee = %s at start, want ringing", callee.Status)
	}

	// Caller rings after the simulated delay.
	time.Sleep(80 * time.Millisecond)
	caller, _ := e.Get("1")
	if caller.Status != StateRinging {
		t.Fatalf("caller = %s after delay, want ringing", caller.Status)
	}

	// Answer on 2: both connected with equal AcceptedAt.
	e.Answer("2")
	caller, _ = e.Get("1")
	callee, _ = e.Get("2")
	if caller.Status != StateConnected || !caller.AcceptedAt.Equal(callee.AcceptedAt) {
		t.Fatal("answer did not connect both sides together")
	}

	// End on 1 after 5s: both ended, notices on both conversations.
	advance(5 * time.Second)
	e.End("1")

	if n := notices(t, s, "1"); len(n) != 1 || n[0].Text != "Call ended (00:05)" {
		t.Errorf("conversation 1 notices = %+v", n)
	}
	if n := notices(t, s, "2"); len(n) != 1 || n[0].Text != "Missed audio call from Ana" {
		t.Errorf("conversation 2 notices = %+v", n)
	}
}
