package merlon

import (
	"fmt"

	"github.com/polydawn/refmt/obj/atlas"
	"github.com/warpfork/go-errcat"
)

/*
	Monitoring configuration struct and the message types used.

	Commands that run the packaging pipeline accept a Monitor so callers
	(the CLI, or tests) can watch stage transitions and warnings without
	the pipeline knowing anything about output streams.
*/
type (
	Monitor struct {
		// Channel to which events will be sent as the pipeline proceeds.
		// The channel will be closed when the pipeline is done or cancelled.
		// A nil channel disables all intermediate reporting.
		Chan chan<- Event
	}

	// A "union" type of all the kinds of event that may be generated
	// in the course of a packaging run.
	//
	// The "Result" message is never sent to Monitor.Chan --
	// its values are converted into the function returns --
	// but *is* seen in the serial form on the wire.
	Event struct {
		Progress *Event_Progress `refmt:"prog,omitempty"`
		Warning  *Event_Warning  `refmt:"warn,omitempty"`
		Result   *Event_Result   `refmt:"result,omitempty"`
	}

	// Stage transition notifications.  'Stage' is one of the fixed
	// pipeline stage names ("extract", "bundle", "archive", "encrypt",
	// "place"); 'Desc' is freetext contextual info.
	Event_Progress struct {
		Stage string
		Desc  string
	}

	// Non-fatal advisories: descriptor validation issues, output
	// extension mismatch.  These never affect the exit status.
	Event_Warning struct {
		Msg string
	}

	Event_Result struct {
		Path  string
		Error *ErrorEnvelope
	}
)

// A serializable carrier for categorized errors, so results survive a
// trip through the wire format without losing their category.
type ErrorEnvelope struct {
	Category ErrorCategory     `refmt:"category"`
	Msg      string            `refmt:"msg"`
	Details  map[string]string `refmt:"details,omitempty"`
}

func (e *ErrorEnvelope) Error() string { return e.Msg }

// SetError fills the result's error slot from a (presumably errcat)
// error.  Nil stays nil; uncategorized errors keep a blank category.
func (r *Event_Result) SetError(err error) {
	if err == nil {
		r.Error = nil
		return
	}
	envelope := &ErrorEnvelope{Msg: err.Error()}
	if category, ok := errcat.Category(err).(ErrorCategory); ok {
		envelope.Category = category
	}
	if e, ok := err.(errcat.Error); ok {
		envelope.Details = e.Details()
	}
	r.Error = envelope
}

// ProgressEvent sends a stage transition to the monitor channel, if one
// is configured.
func (m Monitor) ProgressEvent(stage, desc string) {
	if m.Chan == nil {
		return
	}
	m.Chan <- Event{Progress: &Event_Progress{Stage: stage, Desc: desc}}
}

// WarningEvent sends a non-fatal advisory to the monitor channel, if
// one is configured.
func (m Monitor) WarningEvent(format string, args ...interface{}) {
	if m.Chan == nil {
		return
	}
	m.Chan <- Event{Warning: &Event_Warning{Msg: fmt.Sprintf(format, args...)}}
}

var Atlas = atlas.MustBuild(
	atlas.BuildEntry(Event{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Event_Progress{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Event_Warning{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Event_Result{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(ErrorEnvelope{}).StructMap().Autogenerate().Complete(),
)
