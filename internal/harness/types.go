package harness

import "github.com/roach88/duoplan/internal/plan"

// TraceEvent records one executed step and its outcome.
type TraceEvent struct {
	Seq     int            `json:"seq"`
	Device  string         `json:"device,omitempty"`
	Action  string         `json:"action"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome map[string]any `json:"outcome,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// States holds each device's final state.
	States map[string]plan.SharedState `json:"states,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		States: make(map[string]plan.SharedState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace and returns its sequence number.
func (r *Result) AddTrace(device, action string, args, outcome map[string]any) int {
	seq := len(r.Trace) + 1
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     seq,
		Device:  device,
		Action:  action,
		Args:    args,
		Outcome: outcome,
	})
	return seq
}
