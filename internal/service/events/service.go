package events

import (
	"encoding/json"
	"time"

	"log/slog"

	"github.com/skybtp/crewboard/internal/domain"
	"github.com/skybtp/crewboard/internal/ws"
)

// Service streams committed roster changes to company subscribers.
type Service struct {
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs an event service.
func New(hub *ws.Hub, logger *slog.Logger) Service {
	return Service{hub: hub, logger: logger}
}

// Publish broadcasts a roster event to the subscribers of its company.
func (s Service) Publish(event domain.RosterEvent) {
	if s.hub == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := MarshalEvent(event)
	if err != nil {
		s.logger.Warn("failed to marshal roster event", "type", event.Type, "error", err)
		return
	}
	s.hub.Broadcast(event.CompanyID, data)
	s.logger.Debug("roster event published", "type", event.Type, "company_id", event.CompanyID)
}

// Hub returns the subscriber hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// MarshalEvent formats a roster event for streaming payloads.
func MarshalEvent(event domain.RosterEvent) ([]byte, error) {
	ids := event.CollaboratorIDs
	if ids == nil {
		ids = []string{}
	}
	payload := map[string]any{
		"type":             event.Type,
		"company_id":       event.CompanyID,
		"team_leader_id":   event.TeamLeaderID,
		"collaborator_ids": ids,
		"occurred_at":      event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if event.FromTeamLeaderID != "" {
		payload["from_team_leader_id"] = event.FromTeamLeaderID
	}
	return json.Marshal(payload)
}
