package recorder

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultRedactionPatterns name elements whose values are masked.
var DefaultRedactionPatterns = []string{"password", "token", "secret", "key", "credential"}

// DefaultRedactionReplacement replaces masked values.
const DefaultRedactionReplacement = "***REDACTED***"

var leafElement = regexp.MustCompile(`<([A-Za-z_][\w.\-]*)>([^<]*)</([A-Za-z_][\w.\-]*)>`)

// Redactor masks the text of leaf elements whose name matches one of its
// patterns. Matching is case-insensitive.
type Redactor struct {
	patterns    []*regexp.Regexp
	replacement string
}

// NewRedactor compiles patterns. An empty replacement uses the default.
func NewRedactor(patterns []string, replacement string) (*Redactor, error) {
	if replacement == "" {
		replacement = DefaultRedactionReplacement
	}
	r := &Redactor{replacement: replacement}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Redact returns fragment with sensitive leaf values replaced.
func (r *Redactor) Redact(fragment string) string {
	if r == nil || len(r.patterns) == 0 {
		return fragment
	}
	return leafElement.ReplaceAllStringFunc(fragment, func(m string) string {
		sub := leafElement.FindStringSubmatch(m)
		if sub[1] != sub[3] || !r.sensitive(sub[1]) {
			return m
		}
		return "<" + sub[1] + ">" + r.replacement + "</" + sub[3] + ">"
	})
}

func (r *Redactor) sensitive(name string) bool {
	// only the last segment of a dotted type name counts
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	for _, re := range r.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
