package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/wire"
)

// Scenario is an end-to-end sync test: a sequence of operations against a
// fresh store and sandbox server, followed by assertions on final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Server configures the embedded sandbox server.
	Server ServerSpec `yaml:"server,omitempty"`

	// RunID prefixes the fixed run IDs handed to sync steps.
	// Defaults to "test-run".
	RunID string `yaml:"run_id,omitempty"`

	// Steps run in order. Each holds exactly one operation.
	Steps []Step `yaml:"steps"`

	// Assertions validate final local and server state.
	Assertions []Assertion `yaml:"assertions"`
}

// ServerSpec configures the sandbox.
type ServerSpec struct {
	// Delay is the number of pull requests a queued job waits before completing.
	Delay int `yaml:"delay,omitempty"`
}

// Step is one operation with an optional outcome expectation.
type Step struct {
	Register *RegisterStep `yaml:"register,omitempty"`
	Push     *PushStep     `yaml:"push,omitempty"`
	Pull     *PullStep     `yaml:"pull,omitempty"`
	Sync     *SyncStep     `yaml:"sync,omitempty"`

	// Expect is a subset match against the step outcome.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Op names the operation the step carries.
func (s Step) Op() string {
	switch {
	case s.Register != nil:
		return OpRegister
	case s.Push != nil:
		return OpPush
	case s.Pull != nil:
		return OpPull
	case s.Sync != nil:
		return OpSync
	}
	return ""
}

func (s Step) ops() int {
	n := 0
	for _, set := range []bool{s.Register != nil, s.Push != nil, s.Pull != nil, s.Sync != nil} {
		if set {
			n++
		}
	}
	return n
}

// RegisterStep records source strings with pending stubs.
type RegisterStep struct {
	Source  string   `yaml:"source"`
	Targets []string `yaml:"targets"`
	Texts   []string `yaml:"texts"`
}

// PushStep dispatches pending stubs ("tr") or every source string ("str").
type PushStep struct {
	Mode      string   `yaml:"mode,omitempty"`
	Targets   []string `yaml:"targets,omitempty"`
	BatchSize int      `yaml:"batch_size,omitempty"`
	Transport string   `yaml:"transport,omitempty"`
	Force     bool     `yaml:"force,omitempty"`
	Strict    bool     `yaml:"strict,omitempty"`
}

// PullStep harvests resolved translations.
type PullStep struct {
	Targets          []string `yaml:"targets,omitempty"`
	BatchSize        int      `yaml:"batch_size,omitempty"`
	NoLocaleGrouping bool     `yaml:"no_locale_grouping,omitempty"`
	Force            bool     `yaml:"force,omitempty"`
}

// SyncStep runs the push, pull and poll loop.
type SyncStep struct {
	Targets   []string `yaml:"targets,omitempty"`
	Transport string   `yaml:"transport,omitempty"`
	BatchSize int      `yaml:"batch_size,omitempty"`
	// Poll is the interval between pulls, in seconds or as a Go duration.
	Poll     string `yaml:"poll,omitempty"`
	MaxPolls int    `yaml:"max_polls,omitempty"`
	// StopThreshold defaults to config.DefaultStopThreshold.
	StopThreshold *float64 `yaml:"stop_threshold,omitempty"`
	SkipPush      bool     `yaml:"skip_push,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Locale selects the completion row (completion).
	Locale string `yaml:"locale,omitempty"`

	// Text and SourceLocale identify a source string (stub, key).
	Text         string `yaml:"text,omitempty"`
	SourceLocale string `yaml:"source_locale,omitempty"`

	// Target and Engine complete the stub identity (stub).
	Target string `yaml:"target,omitempty"`
	Engine string `yaml:"engine,omitempty"`

	// Key is the expected content key (key).
	Key string `yaml:"key,omitempty"`

	// Count is the expected number (sleeps, server_pending).
	Count *int `yaml:"count,omitempty"`

	// Expect is a subset match (completion, stub).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpRegister = "register"
	OpPush     = "push"
	OpPull     = "pull"
	OpSync     = "sync"
)

// Assertion type constants.
const (
	AssertCompletion    = "completion"
	AssertStub          = "stub"
	AssertKey           = "key"
	AssertSleeps        = "sleeps"
	AssertServerPending = "server_pending"
)

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
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Server.Delay < 0 {
		return fmt.Errorf("server.delay must be >= 0, got %d", s.Server.Delay)
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if n := step.ops(); n != 1 {
		return fmt.Errorf("must hold exactly one of register, push, pull, sync (found %d)", n)
	}

	switch {
	case step.Register != nil:
		if step.Register.Source == "" {
			return errors.New("register: source is required")
		}
		if len(step.Register.Texts) == 0 {
			return errors.New("register: texts must be non-empty")
		}
	case step.Push != nil:
		switch step.Push.Mode {
		case "", "tr", "str":
		default:
			return fmt.Errorf("push: mode %q must be tr or str", step.Push.Mode)
		}
		if _, err := wire.ParseTransport(step.Push.Transport); err != nil {
			return fmt.Errorf("push: %w", err)
		}
	case step.Sync != nil:
		if _, err := wire.ParseTransport(step.Sync.Transport); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		if step.Sync.Poll != "" {
			if _, err := config.ParseSeconds(step.Sync.Poll); err != nil {
				return fmt.Errorf("sync: poll: %w", err)
			}
		}
	}
	return nil
}

// validateAssertion checks that an assertion has the fields its type needs.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertCompletion:
		if a.Locale == "" {
			return errors.New("completion assertion requires 'locale'")
		}
		if len(a.Expect) == 0 {
			return errors.New("completion assertion requires 'expect'")
		}
	case AssertStub:
		if a.Text == "" || a.SourceLocale == "" || a.Target == "" {
			return errors.New("stub assertion requires 'text', 'source_locale' and 'target'")
		}
		if len(a.Expect) == 0 {
			return errors.New("stub assertion requires 'expect'")
		}
	case AssertKey:
		if a.Text == "" || a.SourceLocale == "" || a.Key == "" {
			return errors.New("key assertion requires 'text', 'source_locale' and 'key'")
		}
	case AssertSleeps, AssertServerPending:
		if a.Count == nil {
			return fmt.Errorf("%s assertion requires 'count'", a.Type)
		}
	case "":
		return errors.New("assertion type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
