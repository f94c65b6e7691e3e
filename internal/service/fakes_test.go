package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"nexchat/internal/media"
	"nexchat/internal/model"
	"nexchat/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// -----------------------------------------------------------------------------
// In-memory repositories
// -----------------------------------------------------------------------------

type fakeUserRepo struct {
	users map[primitive.ObjectID]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[primitive.ObjectID]*model.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetUser(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Summaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserSummary, error) {
	out := make(map[primitive.ObjectID]model.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (r *fakeUserRepo) SetPresence(_ context.Context, id primitive.ObjectID, isOnline bool, lastSeen time.Time) error {
	if u, ok := r.users[id]; ok {
		u.IsOnline = isOnline
		ls := lastSeen
		u.LastSeen = &ls
	}
	return nil
}

type fakeConversationRepo struct {
	conversations map[primitive.ObjectID]*model.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[primitive.ObjectID]*model.Conversation)}
}

func sortedPair(a, b primitive.ObjectID) []primitive.ObjectID {
	pair := []primitive.ObjectID{a, b}
	sort.Slice(pair, func(i, j int) bool { return pair[i].Hex() < pair[j].Hex() })
	return pair
}

func (r *fakeConversationRepo) Create(_ context.Context, a, b primitive.ObjectID) (*model.Conversation, error) {
	now := time.Now()
	c := &model.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: sortedPair(a, b),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.conversations[c.ID] = c
	return c, nil
}

func (r *fakeConversationRepo) FindByParticipants(_ context.Context, a, b primitive.ObjectID) (*model.Conversation, error) {
	pair := sortedPair(a, b)
	for _, c := range r.conversations {
		if len(c.Participants) == 2 && c.Participants[0] == pair[0] && c.Participants[1] == pair[1] {
			return c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id primitive.ObjectID) (*model.Conversation, error) {
	c, ok := r.conversations[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return c, nil
}

func (r *fakeConversationRepo) ListForUser(_ context.Context, userID primitive.ObjectID) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) RecordMessage(_ context.Context, id primitive.ObjectID, messageID *primitive.ObjectID) error {
	c, ok := r.conversations[id]
	if !ok {
		return repo.ErrNotFound
	}
	c.LastMessageID = messageID
	c.UnreadCount++
	c.UpdatedAt = time.Now()
	return nil
}

func (r *fakeConversationRepo) ResetUnread(_ context.Context, id primitive.ObjectID) error {
	c, ok := r.conversations[id]
	if !ok {
		return repo.ErrNotFound
	}
	c.UnreadCount = 0
	return nil
}

type fakeMessageRepo struct {
	messages map[primitive.ObjectID]*model.Message
	order    []primitive.ObjectID
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[primitive.ObjectID]*model.Message)}
}

func (r *fakeMessageRepo) Insert(_ context.Context, msg *model.Message) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	stored := *msg
	stored.ID = id
	r.messages[id] = &stored
	r.order = append(r.order, id)
	return id, nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id primitive.ObjectID) (*model.Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, conversationID primitive.ObjectID) ([]model.Message, error) {
	var out []model.Message
	for _, id := range r.order {
		if m, ok := r.messages[id]; ok && m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) FindByIDsForReceiver(_ context.Context, ids []primitive.ObjectID, receiverID primitive.ObjectID) ([]model.Message, error) {
	var out []model.Message
	for _, id := range ids {
		if m, ok := r.messages[id]; ok && m.ReceiverID == receiverID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkDelivered(_ context.Context, id primitive.ObjectID) (bool, error) {
	m, ok := r.messages[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	if m.Status != model.MessageStatusSent {
		return false, nil
	}
	m.Status = model.MessageStatusDelivered
	return true, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, ids []primitive.ObjectID, receiverID primitive.ObjectID) (int64, error) {
	var n int64
	for _, id := range ids {
		if m, ok := r.messages[id]; ok && m.ReceiverID == receiverID && m.Status != model.MessageStatusRead {
			m.Status = model.MessageStatusRead
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) MarkConversationRead(_ context.Context, conversationID, receiverID primitive.ObjectID) (int64, error) {
	var n int64
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.ReceiverID == receiverID && m.Status != model.MessageStatusRead {
			m.Status = model.MessageStatusRead
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) ToggleReaction(_ context.Context, id, userID primitive.ObjectID, emoji string) (*model.Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	m.Reactions = model.ToggleReaction(m.Reactions, userID, emoji)
	copied := *m
	return &copied, nil
}

func (r *fakeMessageRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := r.messages[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

type fakeStatusRepo struct {
	statuses map[primitive.ObjectID]*model.StatusPost
	order    []primitive.ObjectID
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{statuses: make(map[primitive.ObjectID]*model.StatusPost)}
}

func (r *fakeStatusRepo) Insert(_ context.Context, status *model.StatusPost) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	stored := *status
	stored.ID = id
	r.statuses[id] = &stored
	r.order = append(r.order, id)
	return id, nil
}

func (r *fakeStatusRepo) GetByID(_ context.Context, id primitive.ObjectID) (*model.StatusPost, error) {
	s, ok := r.statuses[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeStatusRepo) ListActive(_ context.Context, now time.Time) ([]model.StatusPost, error) {
	var out []model.StatusPost
	for i := len(r.order) - 1; i >= 0; i-- {
		if s, ok := r.statuses[r.order[i]]; ok && s.ExpiresAt.After(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeStatusRepo) AddViewer(_ context.Context, id, viewerID primitive.ObjectID) (bool, error) {
	s, ok := r.statuses[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	for _, v := range s.Viewers {
		if v == viewerID {
			return false, nil
		}
	}
	s.Viewers = append(s.Viewers, viewerID)
	return true, nil
}

func (r *fakeStatusRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := r.statuses[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.statuses, id)
	return nil
}

// -----------------------------------------------------------------------------
// Recording notifier and uploader
// -----------------------------------------------------------------------------

type sentEvent struct {
	UserID  string
	Name    string
	Payload interface{}
}

type broadcastEvent struct {
	ExceptID string
	Name     string
	Payload  interface{}
}

// recordingNotifier captures every push so tests can assert on delivery
// order and targets. Users listed in online get a successful SendToUser.
type recordingNotifier struct {
	mu         sync.Mutex
	online     map[string]bool
	sends      []sentEvent
	broadcasts []broadcastEvent
}

func newRecordingNotifier(onlineUsers ...string) *recordingNotifier {
	online := make(map[string]bool, len(onlineUsers))
	for _, u := range onlineUsers {
		online[u] = true
	}
	return &recordingNotifier{online: online}
}

func (n *recordingNotifier) SendToUser(userID string, name string, payload interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return false
	}
	n.sends = append(n.sends, sentEvent{UserID: userID, Name: name, Payload: payload})
	return true
}

func (n *recordingNotifier) BroadcastExcept(userID string, name string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, broadcastEvent{ExceptID: userID, Name: name, Payload: payload})
}

func (n *recordingNotifier) sentTo(userID, name string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, ev := range n.sends {
		if ev.UserID == userID && ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type fakeUploader struct {
	err error
}

func (u *fakeUploader) Upload(_ context.Context, f media.File) (*media.Result, error) {
	if u.err != nil {
		return nil, u.err
	}
	return &media.Result{URL: "https://cdn.test/" + f.Name}, nil
}
