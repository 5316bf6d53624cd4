// Package audit defines the write-only boundary to the intervention
// log. The core appends records and never reads them back for
// decisions.
package audit

import "github.com/usermihir/Agentic-EV/core/model"

// Recorder appends one intervention record per action the core takes.
// Implementations are fire-and-forget: a failed append must never fail
// the operation that triggered it.
type Recorder interface {
	Record(model.Intervention)
}

// Nop discards all records.
type Nop struct{}

func (Nop) Record(model.Intervention) {}
