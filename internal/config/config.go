// Package config loads the duoplan configuration file.
//
// The file is YAML and every field is optional. Unknown fields are
// rejected so that typos surface immediately. After defaults are applied
// the result is validated against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/duoplan/internal/codec"
	"github.com/roach88/duoplan/internal/plan"
)

//go:embed schema.cue
var schemaCUE string

// SyncStrategy selects how state travels between the two users.
type SyncStrategy string

// StrategyURLToken shares state as a token inside the shareable address.
// It is the only strategy; the setting exists so the choice is explicit
// instead of being inferred from where the app runs.
const StrategyURLToken SyncStrategy = "url-token"

// DefaultPollInterval is how often the watcher reconciles with the link.
const DefaultPollInterval = 5 * time.Second

// DefaultBaseURL is the address a fresh link starts from.
const DefaultBaseURL = "http://localhost:5173/"

// Config is the complete runtime configuration.
type Config struct {
	Users      Users   `yaml:"users"`
	Sync       Sync    `yaml:"sync"`
	Codec      Codec   `yaml:"codec"`
	Storage    Storage `yaml:"storage"`
	Link       Link    `yaml:"link"`
	TargetSuns int     `yaml:"target_suns"`
}

// Users names the two participants.
type Users struct {
	User1 string `yaml:"user1"`
	User2 string `yaml:"user2"`
}

// Sync configures reconciliation.
type Sync struct {
	Strategy     SyncStrategy  `yaml:"strategy"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// AutoPublish re-encodes the state into the link after every change
	// while a shared document handle is present.
	AutoPublish bool `yaml:"auto_publish"`
}

// Codec configures token encoding.
type Codec struct {
	SizeBudget int  `yaml:"size_budget"`
	Compress   bool `yaml:"compress"`
}

// Storage configures the persistence file.
type Storage struct {
	Path string `yaml:"path"`
}

// Link configures the shareable address.
type Link struct {
	Path      string `yaml:"path"`
	BaseURL   string `yaml:"base_url"`
	Clipboard *bool  `yaml:"clipboard"`
}

// ClipboardEnabled reports whether share links are copied to the clipboard.
// Defaults to true.
func (l Link) ClipboardEnabled() bool {
	return l.Clipboard == nil || *l.Clipboard
}

// Default returns the configuration used when no file exists.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns $HOME/.duoplan/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".duoplan", "config.yaml")
}

// Load reads the config file at path. A missing file yields Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Users.User1 == "" {
		c.Users.User1 = plan.DefaultUser1Name
	}
	if c.Users.User2 == "" {
		c.Users.User2 = plan.DefaultUser2Name
	}
	if c.Sync.Strategy == "" {
		c.Sync.Strategy = StrategyURLToken
	}
	if c.Sync.PollInterval == 0 {
		c.Sync.PollInterval = DefaultPollInterval
	}
	if c.Codec.SizeBudget == 0 {
		c.Codec.SizeBudget = codec.DefaultSizeBudget
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(homeDir(), ".duoplan", "state.db")
	}
	if c.Link.Path == "" {
		c.Link.Path = filepath.Join(homeDir(), ".duoplan", "link.url")
	}
	if c.Link.BaseURL == "" {
		c.Link.BaseURL = DefaultBaseURL
	}
	if c.TargetSuns == 0 {
		c.TargetSuns = plan.DefaultTargetSuns
	}
	c.Storage.Path = expandHome(c.Storage.Path)
	c.Link.Path = expandHome(c.Link.Path)
}

// schemaView is the flat form checked by the CUE schema.
type schemaView struct {
	User1Name      string `json:"user1_name"`
	User2Name      string `json:"user2_name"`
	Strategy       string `json:"strategy"`
	PollIntervalMS int64  `json:"poll_interval_ms"`
	AutoPublish    bool   `json:"auto_publish"`
	SizeBudget     int    `json:"size_budget"`
	Compress       bool   `json:"compress"`
	StoragePath    string `json:"storage_path"`
	LinkPath       string `json:"link_path"`
	BaseURL        string `json:"base_url"`
	Clipboard      bool   `json:"clipboard"`
	TargetSuns     int    `json:"target_suns"`
}

// Validate checks the configuration against the embedded schema.
func (c Config) Validate() error {
	view := schemaView{
		User1Name:      c.Users.User1,
		User2Name:      c.Users.User2,
		Strategy:       string(c.Sync.Strategy),
		PollIntervalMS: c.Sync.PollInterval.Milliseconds(),
		AutoPublish:    c.Sync.AutoPublish,
		SizeBudget:     c.Codec.SizeBudget,
		Compress:       c.Codec.Compress,
		StoragePath:    c.Storage.Path,
		LinkPath:       c.Link.Path,
		BaseURL:        c.Link.BaseURL,
		Clipboard:      c.Link.ClipboardEnabled(),
		TargetSuns:     c.TargetSuns,
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(view))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
