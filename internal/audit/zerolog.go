package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologSink writes each event as one structured log record. Successful events
// log at info, failures at warn, and events listed in ErrorEvents at error.
type ZerologSink struct {
	logger      zerolog.Logger
	errorEvents map[string]struct{}
}

func NewZerologSink(logger zerolog.Logger, errorEvents ...string) *ZerologSink {
	set := make(map[string]struct{}, len(errorEvents))
	for _, e := range errorEvents {
		set[e] = struct{}{}
	}
	return &ZerologSink{logger: logger, errorEvents: set}
}

func (s *ZerologSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}

	var ev *zerolog.Event
	switch {
	case s.isErrorEvent(event.EventType):
		ev = s.logger.Error()
	case event.Success:
		ev = s.logger.Info()
	default:
		ev = s.logger.Warn()
	}

	ev = ev.Time("at", event.Timestamp).
		Str("event", event.EventType).
		Bool("success", event.Success)
	if event.UserID != "" {
		ev = ev.Str("user_id", event.UserID)
	}
	if event.FamilyID != "" {
		ev = ev.Str("family_id", event.FamilyID)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		ev = ev.Str("user_agent", event.UserAgent)
	}
	if event.Error != "" {
		ev = ev.Str("reason", event.Error)
	}
	if len(event.Metadata) > 0 {
		dict := zerolog.Dict()
		for k, v := range event.Metadata {
			dict = dict.Str(k, v)
		}
		ev = ev.Dict("metadata", dict)
	}
	ev.Msg("audit")
}

func (s *ZerologSink) isErrorEvent(eventType string) bool {
	_, ok := s.errorEvents[eventType]
	return ok
}
