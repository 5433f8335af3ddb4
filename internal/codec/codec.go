package codec

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/duoplan/internal/clock"
	"github.com/roach88/duoplan/internal/plan"
)

// DefaultSizeBudget is the maximum token length in characters.
const DefaultSizeBudget = 2000

// Per-user list caps applied when a token exceeds the budget.
const (
	ShortTermLimit = 15
	LongTermLimit  = 10
)

// Shape names the payload layout a token decoded from.
type Shape string

const (
	ShapeCompact Shape = "compact"
	ShapeLegacy  Shape = "legacy"
)

// Codec encodes and decodes shared state tokens.
//
// Thread-safety: a Codec is immutable after New and safe for concurrent use.
type Codec struct {
	clock    clock.Clock
	budget   int
	compress bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithSizeBudget sets the maximum token length.
//
// Default: 2000 characters (DefaultSizeBudget).
func WithSizeBudget(n int) Option {
	return func(c *Codec) {
		c.budget = n
	}
}

// WithCompression makes Encode emit zstd-compressed tokens.
// Decode accepts compressed tokens regardless of this setting.
func WithCompression(on bool) Option {
	return func(c *Codec) {
		c.compress = on
	}
}

// New creates a Codec. The clock stamps the export time on encode and the
// createdAt of decoded plan items.
func New(clk clock.Clock, opts ...Option) *Codec {
	c := &Codec{
		clock:  clk,
		budget: DefaultSizeBudget,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is a successfully encoded token.
type Result struct {
	Token string

	// Truncated is set when plan lists were cut to fit the budget.
	// Callers must warn the user that the link holds only part of the plans.
	Truncated bool
}

// Encode serializes state into a token, truncating plan lists if the full
// token exceeds the size budget.
func (c *Codec) Encode(state plan.SharedState) (Result, error) {
	payload := toCompact(state, clock.EpochMillis(c.clock.Now()))

	token, err := c.encodePayload(payload)
	if err != nil {
		return Result{}, err
	}
	if len(token) <= c.budget {
		return Result{Token: token}, nil
	}

	payload.truncate(ShortTermLimit, LongTermLimit)
	token, err = c.encodePayload(payload)
	if err != nil {
		return Result{}, err
	}
	if len(token) > c.budget {
		return Result{}, plan.NewError(plan.ErrCodePayloadTooLarge,
			fmt.Sprintf("token is %d characters after truncation, budget is %d", len(token), c.budget), nil)
	}
	return Result{Token: token, Truncated: true}, nil
}

func (c *Codec) encodePayload(p compactPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	if c.compress {
		return armorCompressed(data), nil
	}
	return armor(data), nil
}

// Decode parses a token in any supported shape.
func (c *Codec) Decode(token string) (plan.SharedState, error) {
	state, _, err := c.DecodeShape(token)
	return state, err
}

// DecodeShape is Decode that also reports which payload layout was found.
func (c *Codec) DecodeShape(token string) (plan.SharedState, Shape, error) {
	data, err := unarmor(token)
	if err != nil {
		return plan.SharedState{}, "", err
	}

	now := c.clock.Now()
	month := clock.MonthKey(now)
	createdAt := clock.FormatTimestamp(now)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		if json.Valid(data) {
			return plan.SharedState{}, "", plan.NewError(plan.ErrCodeUnknownShape, "payload is not an object", nil)
		}
		return plan.SharedState{}, "", plan.NewError(plan.ErrCodeMalformedToken, "payload is not JSON", err)
	}

	switch {
	case present(probe, "v") && present(probe, "u1") && present(probe, "u2"):
		var p compactPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return plan.SharedState{}, "", plan.NewError(plan.ErrCodeMalformedToken, "compact payload", err)
		}
		state := p.toState(createdAt)
		state.Normalize(month)
		return state, ShapeCompact, nil

	case present(probe, "user1") && present(probe, "user2"):
		var p legacyPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return plan.SharedState{}, "", plan.NewError(plan.ErrCodeMalformedToken, "legacy payload", err)
		}
		state := p.toState(createdAt)
		state.Normalize(month)
		return state, ShapeLegacy, nil

	default:
		return plan.SharedState{}, "", plan.NewError(plan.ErrCodeUnknownShape, "payload matches neither compact nor legacy layout", nil)
	}
}

// present reports whether key exists with a non-null value.
func present(m map[string]json.RawMessage, key string) bool {
	raw, ok := m[key]
	return ok && string(raw) != "null"
}
