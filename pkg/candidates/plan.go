package candidates

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/willibrandon/ChronoCapture/pkg/target"
)

// Plan is the candidate list produced by static analysis: the methods to
// capture and, for each, the nested call-sites captured alongside it.
type Plan struct {
	Targets []TargetSpec `yaml:"targets"`
}

// TargetSpec describes one method to capture.
type TargetSpec struct {
	Visibility string         `yaml:"visibility"`
	Type       string         `yaml:"type"`
	Method     string         `yaml:"method"`
	Params     []string       `yaml:"params,omitempty"`
	Return     string         `yaml:"return,omitempty"`
	Nested     []CallSiteSpec `yaml:"nested,omitempty"`
}

// CallSiteSpec describes a nested call made from inside a target.
type CallSiteSpec struct {
	Type   string   `yaml:"type"`
	Method string   `yaml:"method"`
	Params []string `yaml:"params,omitempty"`
	Return string   `yaml:"return,omitempty"`
	Field  string   `yaml:"field,omitempty"`

	// Mode is "direct" (the default) or "library".
	Mode string `yaml:"mode,omitempty"`
}

// CallSite returns the call-site as seen by the mockable rule.
func (c CallSiteSpec) CallSite() CallSite {
	return CallSite{
		Declaring: c.Type,
		Method:    c.Method,
		Params:    c.Params,
		Return:    c.Return,
		Field:     c.Field,
	}
}

// ParseMode converts a plan mode name into a correlation mode.
func ParseMode(s string) (target.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return target.Direct, nil
	case "library":
		return target.Library, nil
	default:
		return target.TopLevel, fmt.Errorf("unknown correlation mode %q", s)
	}
}

// LoadPlan reads a plan from a YAML file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a YAML plan.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return &plan, nil
}

// Marshal encodes the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate checks that every target and call-site is complete and that
// every nested call-site is mockable.
func (p *Plan) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, t := range p.Targets {
		if t.Type == "" || t.Method == "" {
			errs = append(errs, fmt.Errorf("target %d: type and method are required", i))
			continue
		}
		d := target.New(t.Visibility, t.Type, t.Method, t.Params, t.Return)
		if seen[d.Signature()] {
			errs = append(errs, fmt.Errorf("target %s is listed twice", d.Signature()))
		}
		seen[d.Signature()] = true

		for _, n := range t.Nested {
			site := n.CallSite()
			if n.Type == "" || n.Method == "" {
				errs = append(errs, fmt.Errorf("target %s: nested call-site needs type and method", d.Signature()))
				continue
			}
			if _, err := ParseMode(n.Mode); err != nil {
				errs = append(errs, fmt.Errorf("target %s: call-site %s: %w", d.Signature(), site, err))
			}
			if !IsMockableCallSite(site) {
				errs = append(errs, fmt.Errorf("target %s: call-site %s is not mockable", d.Signature(), site))
			}
		}
	}
	return errors.Join(errs...)
}

// Descriptors builds the descriptors of every target in plan order. Nested
// call-sites are attached to their parent and returned after it.
func (p *Plan) Descriptors() ([]*target.Descriptor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out []*target.Descriptor
	for _, t := range p.Targets {
		parent := target.New(t.Visibility, t.Type, t.Method, t.Params, t.Return)
		out = append(out, parent)
		for _, n := range t.Nested {
			mode, _ := ParseMode(n.Mode)
			d, err := target.NewNested(parent, mode, n.Type, n.Method, n.Params, n.Return)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
	}
	return out, nil
}
