package recorder

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Counter keeps the durable invocation count of a target as a single line
// "Invocation count for <identity>: <n>".
type Counter struct {
	path    string
	prefix  string
	pattern *regexp.Regexp
}

// NewCounter returns a counter stored at path.
func NewCounter(path, identity string) *Counter {
	prefix := fmt.Sprintf("Invocation count for %s: ", strings.ReplaceAll(identity, "[]", "%5b%5d"))
	return &Counter{
		path:    path,
		prefix:  prefix,
		pattern: regexp.MustCompile(regexp.QuoteMeta(prefix) + `(\d+)\s*$`),
	}
}

// Increment adds one to the stored count and returns the new value. The
// file is created with a count of 1 on first use.
func (c *Counter) Increment() (int, error) {
	content, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return 1, c.write(1)
	}
	if err != nil {
		return 0, fmt.Errorf("read invocation count: %w", err)
	}

	m := c.pattern.FindSubmatch(content)
	if m == nil {
		return 0, fmt.Errorf("invocation count file %s is malformed", c.path)
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, fmt.Errorf("parse invocation count: %w", err)
	}
	n++
	return n, c.write(n)
}

// Read returns the stored count, or 0 if nothing has been recorded.
func (c *Counter) Read() (int, error) {
	content, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ParseCount(string(content))
}

func (c *Counter) write(n int) error {
	if err := os.WriteFile(c.path, []byte(c.prefix+strconv.Itoa(n)), 0644); err != nil {
		return fmt.Errorf("write invocation count: %w", err)
	}
	return nil
}

var countLine = regexp.MustCompile(`^Invocation count for .*: (\d+)\s*$`)

// ParseCount extracts the number from a count file's content.
func ParseCount(content string) (int, error) {
	m := countLine.FindStringSubmatch(content)
	if m == nil {
		return 0, fmt.Errorf("malformed invocation count %q", content)
	}
	return strconv.Atoi(m[1])
}
