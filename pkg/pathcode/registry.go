// Package pathcode maps long method identities to short, stable file-name
// codes. The table is durable and append-only: once a path has a code, that
// code never changes.
package pathcode

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
)

const (
	// CodeLength is the number of characters in a generated code.
	CodeLength = 50

	// DefaultFileName is the registry file name inside the storage directory.
	DefaultFileName = "paths.properties"

	defaultCacheSize = 1024
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Registry resolves paths to codes. Load-modify-persist runs under a single
// mutex, so concurrent resolutions of distinct paths never lose entries
// within one process.
type Registry struct {
	mu     sync.Mutex
	path   string
	cache  *lru.Cache
	logger zerolog.Logger
}

// Entry is one path→code pair of the table.
type Entry struct {
	Path string
	Code string
}

// Open returns a registry backed by file. The file and its directory are
// created on first write.
func Open(file string, logger zerolog.Logger) (*Registry, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create path code cache: %w", err)
	}
	r := &Registry{
		path:   file,
		cache:  cache,
		logger: logger.With().Str("component", "pathcode").Logger(),
	}
	// Fail early on an unreadable table; file naming depends on it.
	if _, err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the location of the durable table.
func (r *Registry) Path() string {
	return r.path
}

// Resolve returns the code for path, assigning and persisting a new one if
// the path has never been seen.
func (r *Registry) Resolve(path string) (string, error) {
	if code, ok := r.cache.Get(path); ok {
		return code.(string), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Reload on every miss: the cache is only a view of the durable table.
	table, err := r.load()
	if err != nil {
		return "", err
	}
	if code, ok := table[path]; ok {
		r.cache.Add(path, code)
		return code, nil
	}

	used := make(map[string]bool, len(table))
	for _, c := range table {
		used[c] = true
	}
	code, err := generateCode(CodeLength)
	for err == nil && used[code] {
		code, err = generateCode(CodeLength)
	}
	if err != nil {
		return "", fmt.Errorf("generate code for %q: %w", path, err)
	}

	table[path] = code
	if err := r.save(table); err != nil {
		return "", err
	}
	r.cache.Add(path, code)
	r.logger.Debug().Str("path", path).Str("code", code).Msg("Assigned path code")
	return code, nil
}

// Entries returns the table sorted by path.
func (r *Registry) Entries() ([]Entry, error) {
	r.mu.Lock()
	table, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(table))
	for p, c := range table {
		entries = append(entries, Entry{Path: p, Code: c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (r *Registry) load() (map[string]string, error) {
	table := make(map[string]string)
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return table, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open path code table: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		key, value, ok := splitProperty(line)
		if !ok {
			continue
		}
		table[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read path code table: %w", err)
	}
	return table, nil
}

func (r *Registry) save(table map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create path code directory: %w", err)
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create path code table: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, k := range keys {
		fmt.Fprintf(w, "%s=%s\n", escapeKey(k), table[k])
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write path code table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close path code table: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace path code table: %w", err)
	}
	return nil
}

// splitProperty splits "key=value" at the first unescaped '=' or ':'.
func splitProperty(line string) (string, string, bool) {
	var key strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) {
			i++
			switch line[i] {
			case 'n':
				key.WriteByte('\n')
			case 't':
				key.WriteByte('\t')
			default:
				key.WriteByte(line[i])
			}
			continue
		}
		if c == '=' || c == ':' {
			return key.String(), strings.TrimSpace(line[i+1:]), true
		}
		key.WriteByte(c)
	}
	return "", "", false
}

var keyEscaper = strings.NewReplacer(
	`\`, `\\`,
	"=", `\=`,
	":", `\:`,
	" ", `\ `,
	"#", `\#`,
	"!", `\!`,
	"\n", `\n`,
	"\t", `\t`,
)

func escapeKey(k string) string {
	return keyEscaper.Replace(k)
}

func generateCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
