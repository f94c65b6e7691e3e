package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"nexchat/internal/event"
	"nexchat/internal/model"
	"nexchat/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Peer is one live, pushable connection handle.
type Peer interface {
	// Push enqueues an event for the peer. Returns false when the peer
	// is gone or its queue stayed full past the send timeout.
	Push(ev event.WsEvent) bool
	// Close tears the connection down.
	Close()
}

// PresenceRegistry maps a user id to at most one live connection and is
// the single source of truth for "can I push to this user right now".
// Only the connection lifecycle (hub register/unregister) mutates it;
// everything else resolves and pushes. Presence changes are mirrored to
// durable user storage and announced to every connected peer.
type PresenceRegistry struct {
	mu     sync.RWMutex
	online map[string]Peer

	users repo.UserRepository
}

func NewPresenceRegistry(users repo.UserRepository) *PresenceRegistry {
	return &PresenceRegistry{
		online: make(map[string]Peer),
		users:  users,
	}
}

// Connect binds a connection handle to the user, replacing and closing
// any prior handle (one active connection per identity).
func (p *PresenceRegistry) Connect(userID string, peer Peer) {
	p.mu.Lock()
	prior := p.online[userID]
	p.online[userID] = peer
	p.mu.Unlock()

	if prior != nil && prior != peer {
		log.Printf("user %s reconnected, closing prior connection", userID)
		prior.Close()
	}

	p.mirror(userID, true, time.Now())
	p.BroadcastExcept(userID, event.EventUserStatus, model.UserStatusEvent{
		UserID:   userID,
		IsOnline: true,
	})
}

// Disconnect releases the binding. A stale disconnect (the handle was
// already replaced by a newer connection) is a no-op.
func (p *PresenceRegistry) Disconnect(userID string, peer Peer) {
	p.mu.Lock()
	current, ok := p.online[userID]
	if !ok || current != peer {
		p.mu.Unlock()
		return
	}
	delete(p.online, userID)
	p.mu.Unlock()

	now := time.Now()
	p.mirror(userID, false, now)
	p.BroadcastExcept(userID, event.EventUserStatus, model.UserStatusEvent{
		UserID:   userID,
		IsOnline: false,
		LastSeen: &now,
	})
}

// Resolve returns the live handle for a user. Absence is not an error:
// it means "push nothing".
func (p *PresenceRegistry) Resolve(userID string) (Peer, bool) {
	p.mu.RLock()
	peer, ok := p.online[userID]
	p.mu.RUnlock()
	return peer, ok
}

// QueryStatus answers a one-off presence question without subscribing.
// For offline users last-seen comes from the durable mirror.
func (p *PresenceRegistry) QueryStatus(ctx context.Context, userID string) model.UserStatusEvent {
	if _, ok := p.Resolve(userID); ok {
		now := time.Now()
		return model.UserStatusEvent{UserID: userID, IsOnline: true, LastSeen: &now}
	}

	status := model.UserStatusEvent{UserID: userID, IsOnline: false}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return status
	}
	if user, err := p.users.GetUser(ctx, id); err == nil {
		status.LastSeen = user.LastSeen
	}
	return status
}

// Count returns the number of users currently bound to a connection.
func (p *PresenceRegistry) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.online)
}

// SendToUser pushes one named event to the user's connection, if any.
func (p *PresenceRegistry) SendToUser(userID string, name string, payload interface{}) bool {
	ev, ok := makeEvent(name, payload)
	if !ok {
		return false
	}

	peer, online := p.Resolve(userID)
	if !online {
		return false
	}
	if !peer.Push(ev) {
		log.Printf("failed to push %s to user %s", name, userID)
		return false
	}
	return true
}

// BroadcastExcept pushes one named event to every connected user except
// the given one. The peer set is snapshotted under the read lock and
// pushed outside it so a slow socket never blocks the registry.
func (p *PresenceRegistry) BroadcastExcept(userID string, name string, payload interface{}) {
	ev, ok := makeEvent(name, payload)
	if !ok {
		return
	}

	p.mu.RLock()
	peers := make([]Peer, 0, len(p.online))
	for id, peer := range p.online {
		if id == userID {
			continue
		}
		peers = append(peers, peer)
	}
	p.mu.RUnlock()

	for _, peer := range peers {
		peer.Push(ev)
	}
}

// mirror writes the presence flip through to durable user storage.
// Best-effort: a failed write only costs offline clients a stale
// last-seen until the next flip.
func (p *PresenceRegistry) mirror(userID string, isOnline bool, lastSeen time.Time) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		log.Printf("presence mirror skipped for malformed user id %q", userID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.users.SetPresence(ctx, id, isOnline, lastSeen); err != nil {
		log.Printf("presence mirror failed for user %s: %v", userID, err)
	}
}

func makeEvent(name string, payload interface{}) (event.WsEvent, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal %s payload: %v", name, err)
		return event.WsEvent{}, false
	}
	return event.WsEvent{Event: name, Payload: raw}, true
}
