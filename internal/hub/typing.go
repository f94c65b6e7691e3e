package hub

import (
	"sync"
	"time"

	"nexchat/internal/event"
	"nexchat/internal/model"
)

// DefaultTypingTTL is how long a typing indicator stays up without a
// fresh start event before it auto-stops.
const DefaultTypingTTL = 3 * time.Second

type typingKey struct {
	userID         string
	conversationID string
}

// TypingTracker holds the per (user, conversation) typing state machine:
// idle -> typing -> idle. Each typing entry owns one cancellable timer;
// an explicit stop, a re-arm or the user's disconnect cancels it, and a
// fired timer that lost the race against any of those is a no-op.
type TypingTracker struct {
	presence *PresenceRegistry
	ttl      time.Duration

	mu     sync.Mutex
	timers map[typingKey]*time.Timer
}

func NewTypingTracker(presence *PresenceRegistry, ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{
		presence: presence,
		ttl:      ttl,
		timers:   make(map[typingKey]*time.Timer),
	}
}

// Start transitions the key to typing, (re)arms its expiry timer and
// notifies the receiver. Repeated starts just re-arm; the duplicate
// notification is harmless for the receiver's UI.
func (t *TypingTracker) Start(userID, conversationID, receiverID string) {
	key := typingKey{userID: userID, conversationID: conversationID}

	t.mu.Lock()
	if old, ok := t.timers[key]; ok {
		old.Stop()
	}
	var armed *time.Timer
	armed = time.AfterFunc(t.ttl, func() {
		t.expire(key, armed, receiverID)
	})
	t.timers[key] = armed
	t.mu.Unlock()

	t.notify(userID, conversationID, receiverID, true)
}

// Stop cancels any pending timer and immediately notifies the receiver
// that typing ended.
func (t *TypingTracker) Stop(userID, conversationID, receiverID string) {
	key := typingKey{userID: userID, conversationID: conversationID}

	t.mu.Lock()
	if armed, ok := t.timers[key]; ok {
		armed.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()

	t.notify(userID, conversationID, receiverID, false)
}

// StopAll silently drops every pending timer for a user. Called on
// disconnect so no stale indicator fires after the user is gone.
func (t *TypingTracker) StopAll(userID string) {
	t.mu.Lock()
	for key, armed := range t.timers {
		if key.userID == userID {
			armed.Stop()
			delete(t.timers, key)
		}
	}
	t.mu.Unlock()
}

// Active returns the number of live typing entries.
func (t *TypingTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// expire is the timer callback. The entry may have been cancelled or
// replaced between firing and acquiring the lock; only the timer still
// registered for the key gets to transition it back to idle.
func (t *TypingTracker) expire(key typingKey, armed *time.Timer, receiverID string) {
	t.mu.Lock()
	if t.timers[key] != armed {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.mu.Unlock()

	t.notify(key.userID, key.conversationID, receiverID, false)
}

func (t *TypingTracker) notify(userID, conversationID, receiverID string, isTyping bool) {
	t.presence.SendToUser(receiverID, event.EventUserTyping, model.UserTypingEvent{
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	})
}
