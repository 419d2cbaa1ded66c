package service

import (
	"context"

	"github.com/garyjia/proposal-review/internal/application/dispatcher"
	"github.com/garyjia/proposal-review/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SideEffect is the result of a best-effort step run after a primary
// write has committed. A failed side effect never changes the primary result.
type SideEffect struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// OK reports whether the side effect succeeded
func (s SideEffect) OK() bool {
	return s.Err == nil
}

// SideEffects is the ordered list of side effects an operation attempted
type SideEffects []SideEffect

// Failed returns the side effects that did not succeed
func (s SideEffects) Failed() SideEffects {
	var failed SideEffects
	for _, e := range s {
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	return failed
}

// notify dispatches evt and reports the outcome as a side effect
func notify(ctx context.Context, events dispatcher.Dispatcher, logger Logger, evt *event.Event) SideEffect {
	effect := SideEffect{Name: "notify:" + evt.Type.String()}
	if events == nil {
		return effect
	}
	if err := events.Dispatch(ctx, evt); err != nil {
		logger.Error("Notification failed",
			"error", err,
			"event_type", evt.Type,
			"record_id", evt.RecordID,
			"correlation_id", evt.CorrelationID,
		)
		effect.Err = err
	}
	return effect
}
