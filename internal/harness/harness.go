package harness

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/duoplan/internal/clock"
	"github.com/roach88/duoplan/internal/engine"
	"github.com/roach88/duoplan/internal/ident"
	"github.com/roach88/duoplan/internal/link"
	"github.com/roach88/duoplan/internal/plan"
	"github.com/roach88/duoplan/internal/testutil"
)

// DefaultStart is the clock time scenarios start at unless they set start.
var DefaultStart = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// BaseAddress is the link every device starts with.
const BaseAddress = "http://localhost:5173/"

// idsPerDevice bounds how many items and documents one device may create.
const idsPerDevice = 500

// device is one person's installation: an engine over its own storage and
// link.
type device struct {
	name  string
	kv    *testutil.MemoryKV
	link  *link.Memory
	ids   *ident.FixedGenerator
	notes *engine.RecordingNotifier
	clip  *link.MemoryClipboard
	eng   *engine.Engine
}

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	clock    *testutil.FakeClock
	devices  map[string]*device
}

// Run executes a scenario and returns the result.
//
// Every device starts from empty storage and runs Load, as on first
// launch. Step outcomes are checked against expect clauses as the flow
// runs; assertions are evaluated after the last step.
//
// An error is returned only when the scenario cannot be executed (bad
// step arguments). Failed expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	start := scenario.Start
	if start.IsZero() {
		start = DefaultStart
	}

	h := &Harness{
		scenario: scenario,
		clock:    testutil.NewFakeClock(start),
		devices:  make(map[string]*device, len(scenario.Devices)),
	}

	ctx := context.Background()
	for _, name := range scenario.Devices {
		d := h.newDevice(name)
		d.eng.Load(ctx)
		h.devices[name] = d
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		outcome, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Do, err)
		}
		result.AddTrace(step.Device, step.Do, step.Args, outcome)
		checkExpect(result, i, step, outcome)
	}

	for _, name := range scenario.Devices {
		result.States[name] = h.devices[name].eng.Snapshot()
	}

	actx := &AssertionContext{Devices: h.devices}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) newDevice(name string) *device {
	ids := make([]string, idsPerDevice)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%03d", name, i+1)
	}
	d := &device{
		name:  name,
		kv:    testutil.NewMemoryKV(),
		link:  link.NewMemory(BaseAddress),
		ids:   ident.NewFixedGenerator(ids...),
		notes: &engine.RecordingNotifier{},
		clip:  &link.MemoryClipboard{},
	}
	d.eng = h.newEngine(d)
	return d
}

// newEngine builds a fresh engine over d's storage and link, as a restart
// of the app would.
func (h *Harness) newEngine(d *device) *engine.Engine {
	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithIDGenerator(d.ids),
		engine.WithNotifier(d.notes),
		engine.WithClipboard(d.clip),
	}
	if u := h.scenario.Users; u.User1 != "" || u.User2 != "" {
		opts = append(opts, engine.WithUserNames(
			cmp.Or(u.User1, plan.DefaultUser1Name),
			cmp.Or(u.User2, plan.DefaultUser2Name),
		))
	}
	return engine.New(d.kv, d.link, opts...)
}

// execute runs one step and returns its outcome.
func (h *Harness) execute(ctx context.Context, step FlowStep) (map[string]any, error) {
	switch step.Do {
	case ActionSend:
		from, to := h.devices[argString(step.Args, "from")], h.devices[argString(step.Args, "to")]
		address := from.link.Address()
		to.link.SetAddress(address)
		_, hasToken, err := link.TokenOf(address)
		if err != nil {
			return nil, err
		}
		return map[string]any{"token": hasToken}, nil

	case ActionNextDay:
		h.clock.NextDay()
		return map[string]any{"now": clock.FormatTimestamp(h.clock.Now())}, nil

	case ActionAdvance:
		by, err := time.ParseDuration(argString(step.Args, "by"))
		if err != nil {
			return nil, fmt.Errorf("advance by: %w", err)
		}
		h.clock.Advance(by)
		return map[string]any{"now": clock.FormatTimestamp(h.clock.Now())}, nil
	}

	d := h.devices[step.Device]
	switch step.Do {
	case ActionAdd:
		user, kind, err := target(d.eng, step.Args)
		if err != nil {
			return nil, err
		}
		item, err := d.eng.AddPlanItem(ctx, user, kind, argString(step.Args, "content"))
		if err != nil {
			return errorOutcome(err), nil
		}
		return map[string]any{"id": item.ID}, nil

	case ActionToggle, ActionDelete:
		user, kind, err := target(d.eng, step.Args)
		if err != nil {
			return nil, err
		}
		op := d.eng.TogglePlanItem
		if step.Do == ActionDelete {
			op = d.eng.DeletePlanItem
		}
		changed, err := op(ctx, user, kind, argString(step.Args, "id"))
		if err != nil {
			return errorOutcome(err), nil
		}
		return map[string]any{"changed": changed}, nil

	case ActionStar:
		user, err := d.eng.ResolveUser(argString(step.Args, "user"))
		if err != nil {
			return nil, err
		}
		added, err := d.eng.AddStar(ctx, user)
		if err != nil {
			return errorOutcome(err), nil
		}
		u, _ := d.eng.User(user)
		return map[string]any{"added": added, "stars": u.Stars, "suns": u.Suns}, nil

	case ActionShare:
		share, err := d.eng.GenerateShareLink(ctx)
		if err != nil {
			return errorOutcome(err), nil
		}
		return map[string]any{"version": share.Version, "truncated": share.Truncated}, nil

	case ActionDoc:
		id, err := d.eng.CreateDocument(ctx)
		if err != nil {
			return errorOutcome(err), nil
		}
		return map[string]any{"document": id, "version": d.eng.Version()}, nil

	case ActionSync:
		updated, err := d.eng.SyncNow(ctx)
		out := map[string]any{"updated": updated, "version": d.eng.Version()}
		if err != nil {
			out["error"] = errorCode(err)
		}
		return out, nil

	case ActionCheck:
		updated := d.eng.CheckForUpdates(ctx)
		return map[string]any{"updated": updated, "version": d.eng.Version()}, nil

	case ActionLoad:
		d.eng = h.newEngine(d)
		imported := d.eng.Load(ctx)
		return map[string]any{"imported": imported, "version": d.eng.Version()}, nil

	case ActionResume:
		d.eng = h.newEngine(d)
		d.eng.Resume(ctx)
		return map[string]any{"version": d.eng.Version()}, nil
	}

	return nil, fmt.Errorf("unknown action %q", step.Do)
}

func target(eng *engine.Engine, args map[string]any) (plan.UserID, plan.ListKind, error) {
	user, err := eng.ResolveUser(argString(args, "user"))
	if err != nil {
		return 0, 0, err
	}
	kind, err := plan.ParseListKind(argString(args, "list"))
	if err != nil {
		return 0, 0, err
	}
	return user, kind, nil
}

// argString returns args[key] formatted as a string; YAML scalars such as
// user: 1 decode as ints.
func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func errorOutcome(err error) map[string]any {
	return map[string]any{"error": errorCode(err)}
}

// errorCode names err by its plan error code, or by its message for the
// engine's argument errors.
func errorCode(err error) string {
	if code := plan.CodeOf(err); code != "" {
		return string(code)
	}
	for _, sentinel := range []error{engine.ErrEmptyContent, engine.ErrUnknownUser, engine.ErrUnknownList} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
