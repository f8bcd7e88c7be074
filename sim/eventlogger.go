package sim

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

// A Named handler reports a name for event logs.
type Named interface {
	Name() string
}

// EventLogger is a hook that writes one debug line per handled event.
type EventLogger struct {
	logger logrus.FieldLogger
}

// NewEventLogger returns an EventLogger writing into logger.
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	if n, ok := evt.Handler().(Named); ok {
		h.logger.Debugf("%.10f, %s -> %s",
			evt.Time(), reflect.TypeOf(evt), n.Name())
	} else {
		h.logger.Debugf("%.10f, %s", evt.Time(), reflect.TypeOf(evt))
	}
}
