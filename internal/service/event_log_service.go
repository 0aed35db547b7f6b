package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/request-engine/internal/events"
)

// EventLogService mirrors every lifecycle event into the structured log,
// giving operators a chronological activity feed next to the audit table.
type EventLogService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewEventLogService creates the service.
func NewEventLogService(dispatcher events.Dispatcher, logger *zap.Logger) *EventLogService {
	return &EventLogService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (s *EventLogService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventRequestCreated,
		events.EventRequestStatusChanged,
		events.EventRequestAssigned,
		events.EventRequestScored,
		events.EventRequestExpired,
		events.EventRequestReactivated,
	} {
		s.dispatcher.Subscribe(eventType, s.handleEvent)
	}
}

func (s *EventLogService) handleEvent(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("request_id", event.RequestID),
		zap.String("actor_id", event.ActorID),
	}
	if event.FromStatus != "" {
		fields = append(fields, zap.String("from_status", string(event.FromStatus)))
	}
	if event.ToStatus != "" {
		fields = append(fields, zap.String("to_status", string(event.ToStatus)))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	s.logger.Info(string(event.Type), fields...)
	return nil
}
