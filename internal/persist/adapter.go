// Package persist writes the store's state through to the durable key-value
// store and rehydrates it at startup. Persistence is best effort: write
// failures are logged and swallowed, the in-memory state stays authoritative
// for the session.
package persist

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"convo/internal/bus"
	"convo/internal/kv"
	"convo/internal/model"
	"convo/internal/seed"
	"convo/internal/store"
)

const (
	keyContacts      = "contacts"
	keyConversations = "conversations"
	keyPreferences   = "preferences"
)

// Adapter observes store mutations on the bus and writes snapshots through.
// It only ever reads snapshots; it never mutates live state.
type Adapter struct {
	db     *kv.DB
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewAdapter creates a persistence adapter.
func NewAdapter(db *kv.DB, s *store.Store, b *bus.Bus, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{db: db, store: s, bus: b, logger: logger}
}

// Hydrate loads contacts, conversations and preferences into the store.
// Absent or unparseable data falls back to the built-in seed values without
// surfacing an error: corrupt persisted state must never prevent startup.
func (a *Adapter) Hydrate() {
	contacts := seed.Contacts()
	if raw, ok := a.read(keyContacts); ok {
		var loaded []model.Contact
		if err := json.Unmarshal(raw, &loaded); err == nil {
			contacts = loaded
		} else {
			a.logger.Warn("corrupt contacts, seeding", zap.Error(err))
		}
	}

	convs := seed.Conversations()
	if raw, ok := a.read(keyConversations); ok {
		var loaded []model.Conversation
		if err := json.Unmarshal(raw, &loaded); err == nil {
			convs = loaded
		} else {
			a.logger.Warn("corrupt conversations, seeding", zap.Error(err))
		}
	}

	prefs := seed.Preferences()
	if raw, ok := a.read(keyPreferences); ok {
		var loaded model.Preferences
		if err := json.Unmarshal(raw, &loaded); err == nil {
			prefs = loaded
		} else {
			a.logger.Warn("corrupt preferences, seeding", zap.Error(err))
		}
	}

	a.store.Hydrate(contacts, convs, prefs)
}

func (a *Adapter) read(key string) ([]byte, bool) {
	raw, ok, err := a.db.Get(key)
	if err != nil {
		a.logger.Warn("read failed, seeding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return raw, ok
}

// Start subscribes to chat mutations and writes through after each one.
func (a *Adapter) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	ch, unsub := a.bus.Subscribe("chat.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case <-ch:
				a.Flush()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the write-through loop after one final flush.
func (a *Adapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.Flush()
}

// Flush writes the current snapshots. Failures are logged and swallowed; the
// next successful write reconciles.
func (a *Adapter) Flush() {
	a.write(keyContacts, a.store.Contacts())
	a.write(keyConversations, a.store.SnapshotConversations())
	a.write(keyPreferences, a.store.Preferences())
}

func (a *Adapter) write(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := a.db.Set(key, raw); err != nil {
		a.logger.Warn("write-through failed", zap.String("key", key), zap.Error(err))
	}
}
