package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/ChronoCapture/pkg/correlation"
	"github.com/willibrandon/ChronoCapture/pkg/instrumentation"
	"github.com/willibrandon/ChronoCapture/pkg/recorder"
	"github.com/willibrandon/ChronoCapture/pkg/target"
)

type basket struct {
	Items int
}

// captureFixture records three checkouts, each with one nested store call,
// and returns the storage directory with the two descriptors.
func captureFixture(t *testing.T) (string, *target.Descriptor, *target.Descriptor) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "object-data")
	options := instrumentation.DefaultOptions()
	options.StorageDir = dir

	tracer, err := instrumentation.NewTracer(options, zerolog.Nop())
	require.NoError(t, err)

	checkout := target.New("public", "example.com/shop/cart.Cart", "Checkout", []string{"int"}, "int")
	count, err := target.NewNested(checkout, target.Direct, "example.com/shop/repo.Store", "Count", []string{"string"}, "int")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		cc := correlation.NewCallContext(correlation.Frame{Type: checkout.Type, Method: checkout.Method})
		inv := tracer.Enter(cc, checkout, &basket{Items: i}, i)
		require.NotNil(t, inv)

		cc.Push(correlation.Frame{Type: count.Type, Method: count.Method})
		nested := tracer.Enter(cc, count, nil, "sku")
		require.NotNil(t, nested)
		nested.Exit(4)
		cc.Pop()

		inv.Exit(i * 2)
	}
	return dir, checkout, count
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CHRONOCAP_STORAGE_DIR", "")
	t.Setenv("CHRONOCAP_MAX_INVOCATIONS", "")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "object-data")
	require.NoError(t, os.MkdirAll(dir, 0755))

	out, err := run(t, "--storage-dir", dir, "resolve", "example.com/a.T.M_int")
	require.NoError(t, err)
	assert.Contains(t, out, "example.com/a.T.M_int")

	again, err := run(t, "--storage-dir", dir, "resolve", "example.com/a.T.M_int")
	require.NoError(t, err)
	assert.Equal(t, out, again)

	list, err := run(t, "--storage-dir", dir, "resolve", "--list")
	require.NoError(t, err)
	assert.Equal(t, out, list)

	_, err = run(t, "--storage-dir", dir, "resolve")
	assert.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	dir, checkout, count := captureFixture(t)

	out, err := run(t, "--storage-dir", dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, checkout.Key())
	assert.Contains(t, out, count.Key())
	assert.Contains(t, out, "3/10")
	assert.Contains(t, out, "capturing")

	out, err = run(t, "--storage-dir", dir, "status", "--format", "json", checkout.Key())
	require.NoError(t, err)
	var statuses []targetStatus
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, 3, statuses[0].Invocations)
	assert.Positive(t, statuses[0].LogBytes)
	assert.False(t, statuses[0].AtCap)

	_, err = run(t, "--storage-dir", dir, "status", "example.com/unknown.T.M")
	assert.Error(t, err)
}

func TestStatusWithoutRegistry(t *testing.T) {
	_, err := run(t, "--storage-dir", t.TempDir(), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no path code registry")
}

func TestInspectCommand(t *testing.T) {
	dir, checkout, _ := captureFixture(t)

	out, err := run(t, "--storage-dir", dir, "inspect", checkout.Key())
	require.NoError(t, err)
	assert.Contains(t, out, "Params")
	assert.Contains(t, out, "ReceivingPost")
	assert.Contains(t, out, "parent-uuid")
	assert.Contains(t, out, "sku")
	assert.NotContains(t, out, "(uncorrelated)")
	assert.Equal(t, 3, bytes.Count([]byte(out), []byte("\n== ")))

	limited, err := run(t, "--storage-dir", dir, "inspect", "--limit", "1", checkout.Key())
	require.NoError(t, err)
	assert.Contains(t, limited, "output limited to 1 invocations")

	_, err = run(t, "--storage-dir", dir, "inspect", "--uuid", "missing", checkout.Key())
	assert.Error(t, err)

	_, err = run(t, "--storage-dir", dir, "inspect")
	assert.Error(t, err)
}

func TestArchiveCommand(t *testing.T) {
	dir, checkout, _ := captureFixture(t)

	_, err := run(t, "--storage-dir", dir, "archive")
	assert.Error(t, err)

	out, err := run(t, "--storage-dir", dir, "archive", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "from 2 targets")

	options := instrumentation.DefaultOptions()
	options.StorageDir = dir
	targets, err := registeredTargets(options, zerolog.Nop(), []string{checkout.Key()})
	require.NoError(t, err)
	params := targets[0].Layout.Path(recorder.Params)
	assert.FileExists(t, params)
	assert.FileExists(t, params+recorder.ArchiveSuffix)

	require.NoError(t, os.Remove(params))
	inspected, err := run(t, "--storage-dir", dir, "inspect", checkout.Key())
	require.NoError(t, err)
	assert.Contains(t, inspected, "Params")
}

func TestPlanValidateCommand(t *testing.T) {
	plan := `
targets:
  - visibility: public
    type: example.com/shop/cart.Cart
    method: Checkout
    params: [int]
    return: int
    nested:
      - type: example.com/shop/repo.Store
        method: Count
        params: [string]
        return: int
        field: store
`
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(plan), 0644))

	out, err := run(t, "plan", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "example.com/shop/cart.Cart.Checkout(int)")
	assert.Contains(t, out, "nested-")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("targets:\n  - method: Orphan\n"), 0644))
	_, err = run(t, "plan", "validate", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type and method are required")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ChronoCapture v")
}
