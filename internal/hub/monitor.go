package hub

import (
	"nexchat/internal/model"
)

// MonitorService provides methods to gather hub statistics.
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service.
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics.
func (ms *MonitorService) GetStats() model.MonitorResponse {
	depth, capacity := ms.hub.QueueStats()

	connections := model.ConnectionStats{
		TotalConnected:  ms.hub.ClientCount(),
		TotalIdentified: ms.hub.Presence().Count(),
	}

	status := "healthy"
	if connections.TotalConnected == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connections,
		Typing: model.TypingStats{
			ActiveKeys: ms.hub.Typing().Active(),
		},
		Queue: model.QueueStats{
			InboundDepth:    depth,
			InboundCapacity: capacity,
		},
	}
}
