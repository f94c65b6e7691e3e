package service

// Notifier is the outbound transport port. Delivery is best-effort:
// implementations skip unreachable peers and never block on them, so
// services call these after persistence without caring about the result
// beyond "did a live push happen".
type Notifier interface {
	// SendToUser pushes one named event to the user's live connection.
	// Returns false when the user has no connection or the push was dropped.
	SendToUser(userID string, name string, payload interface{}) bool

	// BroadcastExcept pushes one named event to every connected user
	// except the given one.
	BroadcastExcept(userID string, name string, payload interface{})
}
