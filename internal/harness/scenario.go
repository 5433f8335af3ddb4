package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a two-device sync scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the initial clock time. Defaults to DefaultStart.
	Start time.Time `yaml:"start,omitempty"`

	// Users names the two participants on every device.
	Users Users `yaml:"users,omitempty"`

	// Devices lists the device names. Each gets its own engine.
	Devices []string `yaml:"devices"`

	// Flow contains the steps, executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Users names the two participants.
type Users struct {
	User1 string `yaml:"user1"`
	User2 string `yaml:"user2"`
}

// FlowStep is one action on one device.
type FlowStep struct {
	// Device runs the action. Not used by send, next_day and advance.
	Device string `yaml:"device,omitempty"`

	// Do is the action name.
	Do string `yaml:"do"`

	// Args contains the action arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect is a subset match against the step outcome. If nil the step
	// only has to run.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Device selects the device (final_state, notice, trace_count).
	Device string `yaml:"device,omitempty"`

	// User selects "user1" or "user2" (final_state). Empty checks device
	// level fields only.
	User string `yaml:"user,omitempty"`

	// Expect contains expected field values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Message is a substring of the expected notice (notice).
	Message string `yaml:"message,omitempty"`

	// Action is the counted action (trace_count).
	Action string `yaml:"action,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Devices lists the devices that must agree (converged).
	Devices []string `yaml:"devices,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertNotice     = "notice"
	AssertTraceCount = "trace_count"
	AssertConverged  = "converged"
)

// Step action names.
const (
	ActionAdd     = "add"
	ActionToggle  = "toggle"
	ActionDelete  = "delete"
	ActionStar    = "star"
	ActionShare   = "share"
	ActionDoc     = "doc"
	ActionSync    = "sync"
	ActionCheck   = "check"
	ActionLoad    = "load"
	ActionResume  = "resume"
	ActionSend    = "send"
	ActionNextDay = "next_day"
	ActionAdvance = "advance"
)

// globalActions run without a device.
var globalActions = []string{ActionSend, ActionNextDay, ActionAdvance}

var deviceActions = []string{
	ActionAdd, ActionToggle, ActionDelete, ActionStar, ActionShare, ActionDoc,
	ActionSync, ActionCheck, ActionLoad, ActionResume,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Devices) == 0 {
		return fmt.Errorf("devices list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(s.Devices))
	for _, d := range s.Devices {
		if d == "" {
			return fmt.Errorf("device names must be non-empty")
		}
		if seen[d] {
			return fmt.Errorf("duplicate device %q", d)
		}
		seen[d] = true
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		switch {
		case slices.Contains(globalActions, step.Do):
			if step.Device != "" {
				return fmt.Errorf("flow[%d]: %s does not take a device", i, step.Do)
			}
		case slices.Contains(deviceActions, step.Do):
			if !seen[step.Device] {
				return fmt.Errorf("flow[%d]: unknown device %q", i, step.Device)
			}
		default:
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Do)
		}
		if step.Do == ActionSend {
			for _, key := range []string{"from", "to"} {
				name, _ := step.Args[key].(string)
				if !seen[name] {
					return fmt.Errorf("flow[%d]: send %s: unknown device %q", i, key, name)
				}
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, seen); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, devices map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if !devices[a.Device] {
			return fmt.Errorf("assertions[%d]: unknown device %q", index, a.Device)
		}
		if a.User != "" && a.User != "user1" && a.User != "user2" {
			return fmt.Errorf("assertions[%d]: user must be user1 or user2", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertNotice:
		if !devices[a.Device] {
			return fmt.Errorf("assertions[%d]: unknown device %q", index, a.Device)
		}
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for notice", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
		if a.Device != "" && !devices[a.Device] {
			return fmt.Errorf("assertions[%d]: unknown device %q", index, a.Device)
		}
	case AssertConverged:
		if len(a.Devices) < 2 {
			return fmt.Errorf("assertions[%d]: converged needs at least two devices", index)
		}
		for _, d := range a.Devices {
			if !devices[d] {
				return fmt.Errorf("assertions[%d]: unknown device %q", index, d)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
