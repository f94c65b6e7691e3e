package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"nexchat/internal/event"
	"nexchat/internal/model"
	"nexchat/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakePeer records pushes so tests can assert on what reached the wire.
type fakePeer struct {
	mu     sync.Mutex
	pushed []event.WsEvent
	closed bool
}

func (p *fakePeer) Push(ev event.WsEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.pushed = append(p.pushed, ev)
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakePeer) events(name string) []event.WsEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.WsEvent
	for _, ev := range p.pushed {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakePresenceStore is an in-memory UserRepository for registry tests.
type fakePresenceStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*model.User
}

func newFakePresenceStore(users ...*model.User) *fakePresenceStore {
	s := &fakePresenceStore{users: make(map[primitive.ObjectID]*model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakePresenceStore) GetUser(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakePresenceStore) Summaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[primitive.ObjectID]model.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (s *fakePresenceStore) SetPresence(_ context.Context, id primitive.ObjectID, isOnline bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsOnline = isOnline
		ls := lastSeen
		u.LastSeen = &ls
	}
	return nil
}

func TestPresenceConnectAnnouncesToOthers(t *testing.T) {
	alice := &model.User{ID: primitive.NewObjectID(), Username: "alice"}
	bob := &model.User{ID: primitive.NewObjectID(), Username: "bob"}
	registry := NewPresenceRegistry(newFakePresenceStore(alice, bob))

	alicePeer := &fakePeer{}
	registry.Connect(alice.ID.Hex(), alicePeer)

	bobPeer := &fakePeer{}
	registry.Connect(bob.ID.Hex(), bobPeer)

	assert.Equal(t, 2, registry.Count())

	// Alice hears about bob coming online, bob does not hear about himself.
	require.Len(t, alicePeer.events(event.EventUserStatus), 1)
	assert.Empty(t, bobPeer.events(event.EventUserStatus))
}

func TestPresenceReconnectClosesPriorPeer(t *testing.T) {
	alice := &model.User{ID: primitive.NewObjectID(), Username: "alice"}
	registry := NewPresenceRegistry(newFakePresenceStore(alice))

	stale := &fakePeer{}
	registry.Connect(alice.ID.Hex(), stale)

	fresh := &fakePeer{}
	registry.Connect(alice.ID.Hex(), fresh)

	assert.True(t, stale.isClosed())
	assert.Equal(t, 1, registry.Count())

	resolved, ok := registry.Resolve(alice.ID.Hex())
	require.True(t, ok)
	assert.Same(t, fresh, resolved.(*fakePeer))
}

func TestPresenceStaleDisconnectIsNoop(t *testing.T) {
	alice := &model.User{ID: primitive.NewObjectID(), Username: "alice"}
	registry := NewPresenceRegistry(newFakePresenceStore(alice))

	stale := &fakePeer{}
	registry.Connect(alice.ID.Hex(), stale)
	fresh := &fakePeer{}
	registry.Connect(alice.ID.Hex(), fresh)

	// The old connection's teardown races the new registration; the
	// newer binding must survive it.
	registry.Disconnect(alice.ID.Hex(), stale)

	assert.Equal(t, 1, registry.Count())
	_, ok := registry.Resolve(alice.ID.Hex())
	assert.True(t, ok)
}

func TestPresenceDisconnectMirrorsAndAnnounces(t *testing.T) {
	alice := &model.User{ID: primitive.NewObjectID(), Username: "alice"}
	bob := &model.User{ID: primitive.NewObjectID(), Username: "bob"}
	store := newFakePresenceStore(alice, bob)
	registry := NewPresenceRegistry(store)

	alicePeer := &fakePeer{}
	registry.Connect(alice.ID.Hex(), alicePeer)
	bobPeer := &fakePeer{}
	registry.Connect(bob.ID.Hex(), bobPeer)

	registry.Disconnect(bob.ID.Hex(), bobPeer)

	assert.Equal(t, 1, registry.Count())

	// online announcement + offline announcement
	assert.Len(t, alicePeer.events(event.EventUserStatus), 2)

	stored, err := store.GetUser(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
	assert.NotNil(t, stored.LastSeen)
}

func TestPresenceQueryStatus(t *testing.T) {
	lastSeen := time.Now().Add(-time.Hour)
	alice := &model.User{ID: primitive.NewObjectID(), Username: "alice"}
	bob := &model.User{ID: primitive.NewObjectID(), Username: "bob", LastSeen: &lastSeen}
	registry := NewPresenceRegistry(newFakePresenceStore(alice, bob))

	registry.Connect(alice.ID.Hex(), &fakePeer{})

	online := registry.QueryStatus(context.Background(), alice.ID.Hex())
	assert.True(t, online.IsOnline)

	offline := registry.QueryStatus(context.Background(), bob.ID.Hex())
	assert.False(t, offline.IsOnline)
	require.NotNil(t, offline.LastSeen)
	assert.WithinDuration(t, lastSeen, *offline.LastSeen, time.Second)
}

func TestPresenceSendToUser(t *testing.T) {
	alice := &model.User{ID: primitive.NewObjectID(), Username: "alice"}
	registry := NewPresenceRegistry(newFakePresenceStore(alice))

	payload := model.MessageDeletedEvent{MessageID: primitive.NewObjectID().Hex()}

	assert.False(t, registry.SendToUser(alice.ID.Hex(), event.EventMessageDeleted, payload))

	peer := &fakePeer{}
	registry.Connect(alice.ID.Hex(), peer)

	assert.True(t, registry.SendToUser(alice.ID.Hex(), event.EventMessageDeleted, payload))
	assert.Len(t, peer.events(event.EventMessageDeleted), 1)
}
