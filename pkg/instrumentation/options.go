package instrumentation

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/willibrandon/ChronoCapture/pkg/budget"
	"github.com/willibrandon/ChronoCapture/pkg/pathcode"
	"github.com/willibrandon/ChronoCapture/pkg/recorder"
)

// DefaultStorageDir is where trace files are written unless configured.
var DefaultStorageDir = filepath.Join(os.TempDir(), "chronocap-object-data")

// Options configures a Tracer.
type Options struct {
	// Enabled indicates whether capture is enabled
	Enabled bool `yaml:"enabled"`

	// StorageDir receives the registry, the summary and every target's logs
	StorageDir string `yaml:"storage_dir"`

	// RegistryFile overrides the path-code registry location.
	// Empty means paths.properties inside StorageDir
	RegistryFile string `yaml:"registry_file,omitempty"`

	// MaxInvocations caps the invocations captured per target
	MaxInvocations int `yaml:"max_invocations"`

	// MaxLogBytes stops capture for a target once one of its object logs reaches this size
	MaxLogBytes int64 `yaml:"max_log_bytes"`

	// MaxDepth bounds how deep object graphs are serialized
	MaxDepth int `yaml:"max_depth,omitempty"`

	// IncludePackages is a list of package paths to capture
	// Empty means all packages are captured
	IncludePackages []string `yaml:"include_packages,omitempty"`

	// ExcludePackages is a list of package paths to exclude from capture
	// This takes precedence over IncludePackages
	ExcludePackages []string `yaml:"exclude_packages,omitempty"`

	// InstrumentStdlib indicates whether to capture standard library code
	InstrumentStdlib bool `yaml:"instrument_stdlib"`

	// Redact masks values of sensitive fields before they are written
	Redact bool `yaml:"redact"`

	// RedactPatterns overrides the default sensitive field patterns
	RedactPatterns []string `yaml:"redact_patterns,omitempty"`
}

// DefaultOptions returns the default capture options
func DefaultOptions() Options {
	return Options{
		Enabled:          true,
		StorageDir:       DefaultStorageDir,
		MaxInvocations:   budget.DefaultMaxInvocations,
		MaxLogBytes:      budget.DefaultMaxFileBytes,
		IncludePackages:  []string{}, // Empty means all packages
		ExcludePackages:  []string{}, // Don't exclude any packages by default
		InstrumentStdlib: false,      // Don't capture stdlib by default
	}
}

// LoadOptions reads options from a YAML file, if path is not empty, and
// applies environment overrides on top.
func LoadOptions(path string) (Options, error) {
	options := DefaultOptions()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return options, fmt.Errorf("failed to read options: %w", err)
		}
		if err := yaml.Unmarshal(data, &options); err != nil {
			return options, fmt.Errorf("failed to parse options: %w", err)
		}
	}
	if err := ApplyEnvironment(&options); err != nil {
		return options, err
	}
	return options, nil
}

// ApplyEnvironment overrides options from CHRONOCAP_* environment variables
func ApplyEnvironment(options *Options) error {
	// CHRONOCAP_ENABLED controls whether capture is enabled
	if enabled := os.Getenv("CHRONOCAP_ENABLED"); enabled != "" {
		options.Enabled = parseBool(enabled)
	}

	// CHRONOCAP_STORAGE_DIR controls where trace files are written
	if dir := os.Getenv("CHRONOCAP_STORAGE_DIR"); dir != "" {
		options.StorageDir = dir
	}

	// CHRONOCAP_MAX_INVOCATIONS caps captured invocations per target
	if n := os.Getenv("CHRONOCAP_MAX_INVOCATIONS"); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			return fmt.Errorf("invalid CHRONOCAP_MAX_INVOCATIONS: %w", err)
		}
		options.MaxInvocations = v
	}

	// CHRONOCAP_MAX_LOG_BYTES caps the size of each object log
	if n := os.Getenv("CHRONOCAP_MAX_LOG_BYTES"); n != "" {
		v, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CHRONOCAP_MAX_LOG_BYTES: %w", err)
		}
		options.MaxLogBytes = v
	}

	// CHRONOCAP_INSTRUMENT controls which packages to capture
	if instruments := os.Getenv("CHRONOCAP_INSTRUMENT"); instruments != "" {
		options.IncludePackages = splitList(instruments)
	}

	// CHRONOCAP_EXCLUDE controls which packages to exclude
	if excludes := os.Getenv("CHRONOCAP_EXCLUDE"); excludes != "" {
		options.ExcludePackages = splitList(excludes)
	}

	// CHRONOCAP_INSTRUMENT_STDLIB controls whether to capture standard library
	if instrumentStdlib := os.Getenv("CHRONOCAP_INSTRUMENT_STDLIB"); instrumentStdlib != "" {
		options.InstrumentStdlib = parseBool(instrumentStdlib)
	}

	// CHRONOCAP_REDACT masks sensitive values
	if redact := os.Getenv("CHRONOCAP_REDACT"); redact != "" {
		options.Redact = parseBool(redact)
	}

	return nil
}

func parseBool(s string) bool {
	return s == "1" || s == "true" || s == "yes"
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// RegistryPath returns the path-code registry location
func (o Options) RegistryPath() string {
	if o.RegistryFile != "" {
		return o.RegistryFile
	}
	return filepath.Join(o.StorageDir, pathcode.DefaultFileName)
}

// Limits returns the per-target capture limits
func (o Options) Limits() budget.Limits {
	return budget.Limits{MaxInvocations: o.MaxInvocations, MaxFileBytes: o.MaxLogBytes}
}

// Redactor builds the redactor for recorded fragments, or nil when
// redaction is off.
func (o Options) Redactor() (*recorder.Redactor, error) {
	if !o.Redact {
		return nil, nil
	}
	patterns := o.RedactPatterns
	if len(patterns) == 0 {
		patterns = recorder.DefaultRedactionPatterns
	}
	return recorder.NewRedactor(patterns, "")
}

// ShouldInstrument checks if methods of a package should be captured
func (o Options) ShouldInstrument(packagePath string) bool {
	if !o.Enabled {
		return false
	}

	// Check if package is part of the standard library
	isStdlib := !strings.Contains(packagePath, ".")
	if isStdlib && !o.InstrumentStdlib {
		return false
	}

	// Check if package is explicitly excluded
	for _, exclude := range o.ExcludePackages {
		if matchesPackagePath(packagePath, exclude) {
			return false
		}
	}

	// If no includes specified, capture everything except exclusions
	if len(o.IncludePackages) == 0 {
		return true
	}

	// Check if package is explicitly included
	for _, include := range o.IncludePackages {
		if matchesPackagePath(packagePath, include) {
			return true
		}
	}

	return false
}

// matchesPackagePath checks if a package matches a pattern
func matchesPackagePath(packagePath, pattern string) bool {
	// Handle wildcard patterns
	if strings.HasSuffix(pattern, "...") {
		prefix := strings.TrimSuffix(pattern, "...")
		return strings.HasPrefix(packagePath, prefix)
	}

	// Direct match
	matched, _ := filepath.Match(pattern, packagePath)
	return matched
}
