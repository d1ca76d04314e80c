package call

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"convo/internal/bus"
	"convo/internal/media"
	"convo/internal/model"
)

// ChatLog receives call-log system messages. Satisfied by *store.Store.
type ChatLog interface {
	AppendMessage(contactID string, msg model.Message)
	Contact(id string) (model.Contact, bool)
}

// Config carries the engine timing knobs and the capture capability probe.
type Config struct {
	// DialDelay is the simulated network delay before the caller's record
	// moves from dialing to ringing.
	DialDelay time.Duration
	// EndedLinger is how long ended records stay in the map so a UI can
	// show the ended state briefly.
	EndedLinger time.Duration
	// Probe checks capture capability before any records are created.
	// nil skips the check.
	Probe func() error
}

// Engine owns the active-call map. All transitions for a call id are applied
// to both mirrored records in one locked step; timer callbacks re-check the
// captured call id against the live record and discard themselves when
// stale.
type Engine struct {
	mu        sync.Mutex
	calls     map[string]*ActiveCall // keyed by contact slot id
	tickStops map[string]chan struct{}

	chat        ChatLog
	bus         *bus.Bus
	logger      *zap.Logger
	probe       func() error
	dialDelay   time.Duration
	endedLinger time.Duration
	tickEvery   time.Duration
	now         func() time.Time
}

// NewEngine creates a call engine appending call-log notices to chat.
func NewEngine(chat ChatLog, b *bus.Bus, logger *zap.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialDelay := cfg.DialDelay
	if dialDelay <= 0 {
		dialDelay = 3 * time.Second
	}
	endedLinger := cfg.EndedLinger
	if endedLinger <= 0 {
		endedLinger = 1500 * time.Millisecond
	}
	return &Engine{
		calls:       make(map[string]*ActiveCall),
		tickStops:   make(map[string]chan struct{}),
		chat:        chat,
		bus:         b,
		logger:      logger,
		probe:       cfg.Probe,
		dialDelay:   dialDelay,
		endedLinger: endedLinger,
		tickEvery:   time.Second,
		now:         time.Now,
	}
}

// Get returns a copy of the call record on a contact slot.
func (e *Engine) Get(contactID string) (ActiveCall, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.calls[contactID]
	if !ok {
		return ActiveCall{}, false
	}
	return *rec, true
}

// Start initiates a call between two contact slots. Any live call on either
// slot is force-ended first, so a slot never carries more than one
// non-ended call. The initiator's record starts dialing/outgoing, the
// target's ringing/incoming; both are written in one step under a fresh
// call id. Returns ErrDeviceUnavailable without creating records when the
// capture device cannot be acquired.
func (e *Engine) Start(kind MediaKind, fromID, toID string) (string, error) {
	if e.probe != nil {
		if err := e.probe(); err != nil {
			e.logger.Warn("call aborted, capture device unavailable",
				zap.String("from", fromID), zap.String("to", toID))
			return "", media.ErrDeviceUnavailable
		}
	}

	e.mu.Lock()
	var forced []endedCall
	if ec, ok := e.endLocked(fromID); ok {
		forced = append(forced, ec)
	}
	if ec, ok := e.endLocked(toID); ok {
		forced = append(forced, ec)
	}

	callID := uuid.New().String()
	now := e.now()
	e.calls[fromID] = &ActiveCall{
		CallID:    callID,
		PeerID:    toID,
		Media:     kind,
		Status:    StateDialing,
		Direction: DirectionOutgoing,
		StartedAt: now,
	}
	e.calls[toID] = &ActiveCall{
		CallID:    callID,
		PeerID:    fromID,
		Media:     kind,
		Status:    StateRinging,
		Direction: DirectionIncoming,
		StartedAt: now,
	}
	e.mu.Unlock()

	// Force-ended pairs follow the normal ended lifecycle: state event now,
	// record removal after the linger. Their slots may already hold the new
	// call; removePair checks the call id before deleting.
	for _, ec := range forced {
		e.publishState(ec.CallID, StateEnded)
		time.AfterFunc(e.endedLinger, func() { e.removePair(ec.CallID, ec.enderID, ec.peerID) })
	}

	e.publishState(callID, StateDialing)
	e.logger.Info("call started",
		zap.String("call_id", callID),
		zap.String("from", fromID),
		zap.String("to", toID),
		zap.String("media", string(kind)))

	// Models the callee's device beginning to ring from the caller's
	// perspective. The captured call id guards against a newer call having
	// replaced this one by the time the timer fires.
	time.AfterFunc(e.dialDelay, func() { e.dialRang(callID, fromID) })

	return callID, nil
}

func (e *Engine) dialRang(callID, fromID string) {
	e.mu.Lock()
	rec, ok := e.calls[fromID]
	if !ok || rec.CallID != callID || rec.Status != StateDialing {
		// Stale timer: the call ended or was replaced. Discard.
		e.mu.Unlock()
		return
	}
	rec.Status = StateRinging
	e.mu.Unlock()

	e.publishState(callID, StateRinging)
}

// Answer connects the call ringing on a contact slot. Both mirrored records
// move to connected with the same acceptance timestamp and the connected
// ticker restarts from zero. No-op when the slot has no ringing call or the
// mirrored counterpart is missing.
func (e *Engine) Answer(contactID string) {
	e.mu.Lock()
	rec, ok := e.calls[contactID]
	if !ok || !canTransition(rec.Status, StateConnected) {
		e.mu.Unlock()
		return
	}
	peer, ok := e.calls[rec.PeerID]
	if !ok || peer.CallID != rec.CallID {
		e.mu.Unlock()
		return
	}

	now := e.now()
	rec.Status = StateConnected
	peer.Status = StateConnected
	rec.AcceptedAt = now
	peer.AcceptedAt = now
	rec.ConnectedSecs = 0
	peer.ConnectedSecs = 0
	callID := rec.CallID
	e.stopTickerLocked(callID)
	e.startTickerLocked(callID, contactID, rec.PeerID)
	e.mu.Unlock()

	e.publishState(callID, StateConnected)
	e.logger.Info("call answered", zap.String("call_id", callID))
}

// End terminates the call on a contact slot. Both mirrored records move to
// ended with the same timestamp, the connected ticker stops, and one
// call-log notice is appended per side: the ending party's conversation gets
// the duration notice, the peer's a missed-call notice naming the ender.
// Records are removed after the configured linger. Idempotent; safe on
// never-answered calls.
func (e *Engine) End(contactID string) {
	e.mu.Lock()
	ended, ok := e.endLocked(contactID)
	e.mu.Unlock()
	if !ok {
		return
	}

	e.publishState(ended.CallID, StateEnded)
	e.logger.Info("call ended",
		zap.String("call_id", ended.CallID),
		zap.Int("duration_secs", ended.duration))

	callID := ended.CallID
	time.AfterFunc(e.endedLinger, func() { e.removePair(callID, ended.enderID, ended.peerID) })
}

type endedCall struct {
	CallID   string
	enderID  string
	peerID   string
	duration int
}

// endLocked applies the ended transition to both mirrored records and
// appends the call-log notices. Returns false when the slot has no live
// call, so ending twice or ending an empty slot is a no-op.
func (e *Engine) endLocked(enderID string) (endedCall, bool) {
	rec, ok := e.calls[enderID]
	if !ok || !canTransition(rec.Status, StateEnded) {
		return endedCall{}, false
	}

	now := e.now()
	duration := 0
	if rec.Answered() {
		duration = int(now.Sub(rec.AcceptedAt) / time.Second)
	}

	rec.Status = StateEnded
	rec.EndedAt = now
	peerID := rec.PeerID
	if peer, ok := e.calls[peerID]; ok && peer.CallID == rec.CallID {
		peer.Status = StateEnded
		peer.EndedAt = now
	}
	e.stopTickerLocked(rec.CallID)

	if e.chat != nil {
		enderName := enderID
		if c, ok := e.chat.Contact(enderID); ok {
			enderName = c.Name
		}
		e.chat.AppendMessage(enderID, callNotice(
			fmt.Sprintf("Call ended (%s)", formatDuration(duration)), now))
		e.chat.AppendMessage(peerID, callNotice(
			fmt.Sprintf("Missed %s call from %s", rec.Media, enderName), now))
	}

	return endedCall{CallID: rec.CallID, enderID: enderID, peerID: peerID, duration: duration}, true
}

// removePair drops both mirrored records once the linger elapses, provided
// the slots still hold this call.
func (e *Engine) removePair(callID string, slots ...string) {
	e.mu.Lock()
	removed := false
	for _, id := range slots {
		if rec, ok := e.calls[id]; ok && rec.CallID == callID && rec.Status == StateEnded {
			delete(e.calls, id)
			removed = true
		}
	}
	e.mu.Unlock()

	if removed {
		e.publish("call.removed", map[string]string{"call_id": callID})
	}
}

// ToggleMic flips the mic-muted flag on the local party's record only.
func (e *Engine) ToggleMic(contactID string) {
	e.toggleLocal(contactID, func(c *ActiveCall) { c.MicMuted = !c.MicMuted })
}

// ToggleCamera flips the camera-off flag on the local party's record only.
func (e *Engine) ToggleCamera(contactID string) {
	e.toggleLocal(contactID, func(c *ActiveCall) { c.CamOff = !c.CamOff })
}

// SetDocked records the local display placement preference. Never mirrored
// and never part of call progress.
func (e *Engine) SetDocked(contactID string, docked bool) {
	e.toggleLocal(contactID, func(c *ActiveCall) { c.Docked = docked })
}

func (e *Engine) toggleLocal(contactID string, fn func(*ActiveCall)) {
	e.mu.Lock()
	rec, ok := e.calls[contactID]
	var callID string
	if ok && rec.Status != StateEnded {
		fn(rec)
		callID = rec.CallID
	}
	e.mu.Unlock()

	if callID != "" {
		e.publish("call.state_changed", map[string]string{
			"call_id":    callID,
			"contact_id": contactID,
			"change":     "local_flags",
		})
	}
}

func (e *Engine) startTickerLocked(callID string, slots ...string) {
	stop := make(chan struct{})
	e.tickStops[callID] = stop
	go func() {
		ticker := time.NewTicker(e.tickEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.tickConnected(callID, slots)
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) stopTickerLocked(callID string) {
	if stop, ok := e.tickStops[callID]; ok {
		close(stop)
		delete(e.tickStops, callID)
	}
}

// tickConnected advances the connected-seconds counter on both mirrored
// records, discarding itself when the slots no longer hold this call.
func (e *Engine) tickConnected(callID string, slots []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range slots {
		if rec, ok := e.calls[id]; ok && rec.CallID == callID && rec.Status == StateConnected {
			rec.ConnectedSecs++
		}
	}
}

func (e *Engine) publishState(callID string, status State) {
	e.publish("call.state_changed", map[string]string{
		"call_id": callID,
		"status":  string(status),
	})
}

func (e *Engine) publish(kind string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func callNotice(text string, at time.Time) model.Message {
	return model.Message{
		Sender:    model.LocalSender,
		Text:      text,
		Type:      model.TypeCall,
		Status:    model.StatusRead,
		Timestamp: at,
	}
}

func formatDuration(secs int) string {
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
