// Package rules parses and validates the rule file that drives rescheduling.
//
// The file pairs a capacity budget (flat, or one value per weekday) with a
// list of label rules, each assigning the capacity cost a matching task
// consumes. Validation is strict and happens entirely at load time so a bad
// configuration can never reach the task service: every rule weight must fit
// inside the largest day of the week, and a per-weekday budget must name all
// seven days.
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultCapacity is the flat per-day budget used when no rule file is given.
const DefaultCapacity = 10

// Rule binds one label to the capacity cost its tasks consume. The label key
// is Filter minus its leading "@". Weight is optional; rules without a weight
// take no part in classification. Limit is parsed and validated but has no
// runtime effect yet.
type Rule struct {
	Filter string `json:"filter"`
	Weight *int   `json:"weight,omitempty"`
	Limit  *int   `json:"limit,omitempty"`
}

// Label returns the rule's label key.
func (r Rule) Label() string {
	return strings.TrimPrefix(strings.TrimSpace(r.Filter), "@")
}

// WeekdayWeights is a complete per-weekday capacity budget. Fields are
// pointers so a missing day can be told apart from an explicit zero.
type WeekdayWeights struct {
	Monday    *int `json:"monday"`
	Tuesday   *int `json:"tuesday"`
	Wednesday *int `json:"wednesday"`
	Thursday  *int `json:"thursday"`
	Friday    *int `json:"friday"`
	Saturday  *int `json:"saturday"`
	Sunday    *int `json:"sunday"`
}

func (w *WeekdayWeights) field(day time.Weekday) (string, *int) {
	switch day {
	case time.Monday:
		return "monday", w.Monday
	case time.Tuesday:
		return "tuesday", w.Tuesday
	case time.Wednesday:
		return "wednesday", w.Wednesday
	case time.Thursday:
		return "thursday", w.Thursday
	case time.Friday:
		return "friday", w.Friday
	case time.Saturday:
		return "saturday", w.Saturday
	default:
		return "sunday", w.Sunday
	}
}

// values returns the day budgets that are present. Validate rejects
// incomplete configs before anything depends on the result.
func (w *WeekdayWeights) values() []int {
	out := make([]int, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if _, v := w.field(day); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Capacity is the max_weight value of a rule file: either a single integer
// applied uniformly, or a complete per-weekday record.
//
// Expectations:
//   - A JSON integer populates Flat
//   - A JSON object populates Weekday
//   - Any other JSON shape fails to parse
type Capacity struct {
	Flat    *int
	Weekday *WeekdayWeights
}

func (c *Capacity) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var w WeekdayWeights
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("parse per-weekday max_weight: %w", err)
		}
		c.Weekday = &w
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("max_weight must be an integer or a per-weekday object")
	}
	c.Flat = &n
	return nil
}

func (c Capacity) MarshalJSON() ([]byte, error) {
	if c.Weekday != nil {
		return json.Marshal(c.Weekday)
	}
	if c.Flat != nil {
		return json.Marshal(*c.Flat)
	}
	return []byte("null"), nil
}

// Config is a validated rule file.
type Config struct {
	MaxWeight Capacity `json:"max_weight"`
	Rules     []Rule   `json:"rules"`
}

// Default returns the configuration used when no rule file is given: a flat
// budget of DefaultCapacity and no rules, so every task is included at
// weight zero.
func Default() *Config {
	return &Config{MaxWeight: Capacity{Flat: lo.ToPtr(DefaultCapacity)}}
}

// Load reads and validates the rule file at path. An empty path, or a path
// that does not exist, falls back to Default.
//
// Expectations:
//   - Empty path returns Default without touching the filesystem
//   - A path that does not exist returns Default
//   - Unreadable files, invalid JSON, and validation failures are fatal
func Load(path string, log *zap.SugaredLogger) (*Config, error) {
	if path == "" {
		log.Info("no rules provided, using defaults")
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infow("rules file not found, using defaults", "path", path)
			return Default(), nil
		}
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	log.Infow("loading rules", "path", path)

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the whole configuration. It must pass before any task is
// fetched.
//
// Expectations:
//   - Requires max_weight to be present
//   - Flat budgets must be at least 1
//   - Per-weekday budgets must name all seven days, each >= 0, with at
//     least one nonzero day
//   - Every rule filter must be non-empty after trimming
//   - Weight and limit, when present, must be at least 1
//   - Every rule weight must fit the capacity ceiling; the error names the
//     offending rule and the ceiling
func (c *Config) Validate() error {
	switch {
	case c.MaxWeight.Flat != nil:
		if *c.MaxWeight.Flat < 1 {
			return fmt.Errorf("max_weight must be at least 1, got %d", *c.MaxWeight.Flat)
		}
	case c.MaxWeight.Weekday != nil:
		for day := time.Sunday; day <= time.Saturday; day++ {
			name, v := c.MaxWeight.Weekday.field(day)
			if v == nil {
				return fmt.Errorf("per-weekday max_weight missing %s", name)
			}
			if *v < 0 {
				return fmt.Errorf("per-weekday max_weight for %s must not be negative, got %d", name, *v)
			}
		}
		if c.Ceiling() < 1 {
			return fmt.Errorf("per-weekday max_weight needs at least one nonzero day")
		}
	default:
		return fmt.Errorf("missing max_weight")
	}

	ceiling := c.Ceiling()
	for _, r := range c.Rules {
		if r.Label() == "" {
			return fmt.Errorf("rule filter must not be empty")
		}
		if r.Weight != nil && *r.Weight < 1 {
			return fmt.Errorf("invalid rule config: %s weight must be at least 1", r.Filter)
		}
		if r.Limit != nil && *r.Limit < 1 {
			return fmt.Errorf("invalid rule config: %s limit must be at least 1", r.Filter)
		}
		if r.Weight != nil && *r.Weight > ceiling {
			return fmt.Errorf("invalid rule config: %s exceeds max weight %d", r.Filter, ceiling)
		}
	}
	return nil
}

// HasRules reports whether any rules are configured. Without rules every
// task is admitted at weight zero; with rules, tasks must match one to be
// planned at all.
func (c *Config) HasRules() bool {
	return len(c.Rules) > 0
}

// CapacityFor returns the budget for the given date's weekday.
func (c *Config) CapacityFor(t time.Time) int {
	if c.MaxWeight.Weekday != nil {
		_, v := c.MaxWeight.Weekday.field(t.Weekday())
		if v == nil {
			return 0
		}
		return *v
	}
	if c.MaxWeight.Flat != nil {
		return *c.MaxWeight.Flat
	}
	return 0
}

// Ceiling returns the largest day budget in the configuration. Rule weights
// above it could never be packed and are rejected by Validate.
func (c *Config) Ceiling() int {
	if c.MaxWeight.Weekday != nil {
		return lo.Max(c.MaxWeight.Weekday.values())
	}
	if c.MaxWeight.Flat != nil {
		return *c.MaxWeight.Flat
	}
	return 0
}

// WeightFor returns the capacity cost for a label. The first rule in file
// order whose key matches and which carries a weight wins; rules without a
// weight are skipped.
func (c *Config) WeightFor(label string) (int, bool) {
	for _, r := range c.Rules {
		if r.Weight == nil {
			continue
		}
		if r.Label() == label {
			return *r.Weight, true
		}
	}
	return 0, false
}
