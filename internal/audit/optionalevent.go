package audit

import (
	"github.com/rs/zerolog"
)

// OptionalEvent builds a dictionary that is only attached to its parent event
// when at least one field was written. Zero values are skipped for the string
// and integer setters.
type OptionalEvent struct {
	ev       *zerolog.Event
	modified bool
}

func NewOptionalEvent(e *zerolog.Event) *OptionalEvent {
	return &OptionalEvent{ev: e}
}

func (oe *OptionalEvent) event() *zerolog.Event {
	if oe.ev == nil {
		oe.ev = zerolog.Dict()
		oe.modified = false
	}
	return oe.ev
}

// Set attaches the dictionary to parent under key, reporting whether anything
// was written.
func (oe *OptionalEvent) Set(parent *zerolog.Event, key string) bool {
	if oe.modified {
		parent.Dict(key, oe.event())
		return true
	}
	return false
}

func (oe *OptionalEvent) Str(key, val string) *OptionalEvent {
	if val == "" {
		return oe
	}
	oe.event().Str(key, val)
	oe.modified = true
	return oe
}

func (oe *OptionalEvent) Bool(key string, val bool) *OptionalEvent {
	oe.event().Bool(key, val)
	oe.modified = true
	return oe
}

func (oe *OptionalEvent) Int(key string, val int) *OptionalEvent {
	if val == 0 {
		return oe
	}
	oe.event().Int(key, val)
	oe.modified = true
	return oe
}
