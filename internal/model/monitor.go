package model

// ConnectionStats summarizes live websocket connections.
type ConnectionStats struct {
	TotalConnected  int `json:"totalConnected"`  // open sockets, bound or not
	TotalIdentified int `json:"totalIdentified"` // sockets bound to a user id
}

// TypingStats summarizes the typing tracker.
type TypingStats struct {
	ActiveKeys int `json:"activeKeys"` // live (user, conversation) timers
}

// QueueStats reports inbound event queue pressure.
type QueueStats struct {
	InboundDepth    int `json:"inboundDepth"`
	InboundCapacity int `json:"inboundCapacity"`
}

// MonitorResponse is the full hub statistics payload.
type MonitorResponse struct {
	Status      string          `json:"status"`
	Connections ConnectionStats `json:"connections"`
	Typing      TypingStats     `json:"typing"`
	Queue       QueueStats      `json:"queue"`
}
