package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/duoplan/internal/plan"
)

// AssertionContext gives assertions access to the devices after the flow.
type AssertionContext struct {
	Devices map[string]*device
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %v -> %v\n", event.Seq, event.Device, event.Action, event.Args, event.Outcome)
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(result, a)
		case AssertNotice:
			err = assertNotice(result, a, actx)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertConverged:
			err = assertConverged(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// checkExpect compares a step outcome with its expect clause (subset match).
func checkExpect(result *Result, index int, step FlowStep, outcome map[string]any) {
	keys := make([]string, 0, len(step.Expect))
	for k := range step.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want := step.Expect[k]
		got, ok := outcome[k]
		if !ok {
			result.AddError(fmt.Sprintf("flow[%d] %s: outcome has no %q (outcome %v)", index, step.Do, k, outcome))
			continue
		}
		if !valuesEqual(want, got) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s = %v, want %v", index, step.Do, k, got, want))
		}
	}
}

// assertFinalState checks device or user fields of a device's final state.
//
// Device fields: version, total_suns.
// User fields: name, stars, suns, month, short_term, long_term, done,
// history. Lists hold item contents; history entries are "YYYY-MM s/su".
func assertFinalState(result *Result, a Assertion) error {
	state := result.States[a.Device]

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, err := stateField(state, a.User, k)
		if err != nil {
			return err
		}
		if want := a.Expect[k]; !valuesEqual(want, got) {
			subject := a.Device
			if a.User != "" {
				subject += "." + a.User
			}
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", subject, k, want),
				Actual:   fmt.Sprintf("%v", got),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func stateField(state plan.SharedState, user, key string) (any, error) {
	switch key {
	case "version":
		return state.Version, nil
	case "total_suns":
		return state.TotalSuns(), nil
	}

	var u plan.UserData
	switch user {
	case "user1":
		u = state.User1
	case "user2":
		u = state.User2
	default:
		return nil, fmt.Errorf("field %q needs a user", key)
	}

	switch key {
	case "name":
		return u.Name, nil
	case "stars":
		return u.Stars, nil
	case "suns":
		return u.Suns, nil
	case "month":
		return u.LastResetMonth, nil
	case "short_term":
		return contents(u.ShortTermPlans, false), nil
	case "long_term":
		return contents(u.LongTermPlans, false), nil
	case "done":
		return append(contents(u.ShortTermPlans, true), contents(u.LongTermPlans, true)...), nil
	case "history":
		history := make([]string, 0, len(u.MonthlyAchievements))
		for _, m := range u.MonthlyAchievements {
			history = append(history, fmt.Sprintf("%s %d/%d", m.Month, m.Stars, m.Suns))
		}
		return history, nil
	default:
		return nil, fmt.Errorf("unknown state field %q", key)
	}
}

func contents(items []plan.PlanItem, completedOnly bool) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if completedOnly && !it.Completed {
			continue
		}
		out = append(out, it.Content)
	}
	return out
}

// assertNotice checks that the device showed a notice containing Message.
func assertNotice(result *Result, a Assertion, actx *AssertionContext) error {
	d := actx.Devices[a.Device]
	var seen []string
	for _, n := range d.notes.Notices() {
		if strings.Contains(n.Message, a.Message) {
			return nil
		}
		seen = append(seen, n.Message)
	}
	return &AssertionError{
		Type:     AssertNotice,
		Expected: fmt.Sprintf("%s showed %q", a.Device, a.Message),
		Actual:   fmt.Sprintf("notices %q", seen),
		Trace:    result.Trace,
	}
}

// assertTraceCount checks how often an action ran, optionally on one device.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == a.Action && (a.Device == "" || event.Device == a.Device) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s to run %d times", a.Action, a.Count),
			Actual:   fmt.Sprintf("ran %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertConverged checks that the listed devices hold identical state.
func assertConverged(result *Result, a Assertion) error {
	first := result.States[a.Devices[0]]
	for _, name := range a.Devices[1:] {
		if other := result.States[name]; !reflect.DeepEqual(first, other) {
			return &AssertionError{
				Type:     AssertConverged,
				Expected: fmt.Sprintf("%s and %s to hold the same state", a.Devices[0], name),
				Actual:   fmt.Sprintf("versions %d and %d", first.Version, other.Version),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// valuesEqual compares a YAML-decoded expectation with an actual value.
// Integers compare by value whatever their type; lists compare element
// by element.
func valuesEqual(want, got any) bool {
	return reflect.DeepEqual(normalize(want), normalize(got))
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case uint64:
		return int64(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
