package endpoint

import "go.uber.org/zap"

// EventSink is notified of load-state transitions. Notifications are fire-and-forget.
type EventSink interface {
	VirtualEndPointBecomingIncomplete(id EndPointID)
	VirtualEndPointDataComplete(id EndPointID)
}

// NopEventSink ignores all notifications.
type NopEventSink struct{}

func (NopEventSink) VirtualEndPointBecomingIncomplete(EndPointID) {}
func (NopEventSink) VirtualEndPointDataComplete(EndPointID)       {}

// LoggingEventSink writes transitions to a zap logger at debug level.
type LoggingEventSink struct {
	logger *zap.Logger
}

// NewLoggingEventSink creates a sink logging to l.
func NewLoggingEventSink(l *zap.Logger) *LoggingEventSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &LoggingEventSink{logger: l}
}

func (s *LoggingEventSink) VirtualEndPointBecomingIncomplete(id EndPointID) {
	s.logger.Debug("Virtual end-point becoming incomplete", zap.Stringer("endpoint", id))
}

func (s *LoggingEventSink) VirtualEndPointDataComplete(id EndPointID) {
	s.logger.Debug("Virtual end-point data complete", zap.Stringer("endpoint", id))
}

// EventSinks fans notifications out to every sink in order.
type EventSinks []EventSink

func (s EventSinks) VirtualEndPointBecomingIncomplete(id EndPointID) {
	for _, sink := range s {
		if sink != nil {
			sink.VirtualEndPointBecomingIncomplete(id)
		}
	}
}

func (s EventSinks) VirtualEndPointDataComplete(id EndPointID) {
	for _, sink := range s {
		if sink != nil {
			sink.VirtualEndPointDataComplete(id)
		}
	}
}

// EventSinkFuncs adapts plain functions to an EventSink. Nil functions are skipped.
type EventSinkFuncs struct {
	BecomingIncomplete func(id EndPointID)
	DataComplete       func(id EndPointID)
}

func (f EventSinkFuncs) VirtualEndPointBecomingIncomplete(id EndPointID) {
	if f.BecomingIncomplete != nil {
		f.BecomingIncomplete(id)
	}
}

func (f EventSinkFuncs) VirtualEndPointDataComplete(id EndPointID) {
	if f.DataComplete != nil {
		f.DataComplete(id)
	}
}
