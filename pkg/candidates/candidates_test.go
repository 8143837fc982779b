package candidates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/ChronoCapture/pkg/target"
)

func TestIsMockableCallSite(t *testing.T) {
	tests := []struct {
		name string
		site CallSite
		want bool
	}{
		{
			name: "field call returning int",
			site: CallSite{Declaring: "shop/repo.Store", Method: "Count", Params: []string{"string"}, Return: "int", Field: "store"},
			want: true,
		},
		{
			name: "field call returning nothing",
			site: CallSite{Declaring: "shop/notify.Mailer", Method: "Send", Field: "mailer"},
			want: true,
		},
		{
			name: "field call returning string",
			site: CallSite{Declaring: "shop/repo.Store", Method: "Name", Return: "string", Field: "store"},
			want: true,
		},
		{
			name: "not through a field",
			site: CallSite{Declaring: "shop/repo.Store", Method: "Count", Return: "int"},
			want: false,
		},
		{
			name: "returns a struct",
			site: CallSite{Declaring: "shop/repo.Store", Method: "Load", Return: "shop/repo.Item", Field: "store"},
			want: false,
		},
		{
			name: "string conversion",
			site: CallSite{Declaring: "shop/repo.Store", Method: "String", Return: "string", Field: "store"},
			want: false,
		},
		{
			name: "jvm hash code",
			site: CallSite{Declaring: "org.acme.Store", Method: "hashCode", Return: "int", Field: "store"},
			want: false,
		},
		{
			name: "builder method",
			site: CallSite{Declaring: "*strings.Builder", Method: "Len", Return: "int", Field: "buf"},
			want: false,
		},
		{
			name: "jvm collection",
			site: CallSite{Declaring: "java.util.Collection", Method: "size", Return: "int", Field: "items"},
			want: false,
		},
		{
			name: "slice type",
			site: CallSite{Declaring: "[]int", Method: "Len", Return: "int", Field: "xs"},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMockableCallSite(tt.site))
		})
	}
}

const samplePlan = `
targets:
  - visibility: public
    type: shop/cart.Cart
    method: Total
    params: [int]
    return: float64
    nested:
      - type: shop/repo.Store
        method: Count
        params: [string]
        return: int
        field: store
      - type: shop/notify.Mailer
        method: Send
        field: mailer
        mode: library
  - visibility: public
    type: shop/cart.Cart
    method: Clear
`

func TestPlanDescriptors(t *testing.T) {
	plan, err := ParsePlan([]byte(samplePlan))
	require.NoError(t, err)
	require.NoError(t, plan.Validate())

	descs, err := plan.Descriptors()
	require.NoError(t, err)
	require.Len(t, descs, 4)

	parent := descs[0]
	assert.Equal(t, "shop/cart.Cart.Total(int)", parent.Signature())
	assert.Equal(t, target.TopLevel, parent.Mode)
	assert.Len(t, parent.Nested, 2)

	count := descs[1]
	assert.Same(t, parent, count.Parent)
	assert.Equal(t, target.Direct, count.Mode)
	assert.Equal(t, "nested-shop/cart.Cart.Total_int/shop/repo.Store.Count_string", count.Key())

	send := descs[2]
	assert.Equal(t, target.Library, send.Mode)

	assert.Equal(t, "shop/cart.Cart.Clear()", descs[3].Signature())
	assert.Empty(t, descs[3].Nested)
}

func TestPlanValidate(t *testing.T) {
	plan := &Plan{Targets: []TargetSpec{
		{Type: "shop/cart.Cart", Method: "Total", Nested: []CallSiteSpec{
			{Type: "shop/repo.Store", Method: "Load", Return: "shop/repo.Item", Field: "store"},
			{Type: "shop/repo.Store", Method: "Count", Return: "int", Field: "store", Mode: "async"},
		}},
		{Type: "shop/cart.Cart", Method: "Total"},
		{Method: "Orphan"},
	}}

	err := plan.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not mockable")
	assert.Contains(t, err.Error(), `unknown correlation mode "async"`)
	assert.Contains(t, err.Error(), "listed twice")
	assert.Contains(t, err.Error(), "target 2: type and method are required")

	_, err = plan.Descriptors()
	assert.Error(t, err)
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0644))

	plan, err := LoadPlan(path)
	require.NoError(t, err)
	require.Len(t, plan.Targets, 2)
	assert.Equal(t, "store", plan.Targets[0].Nested[0].Field)

	data, err := plan.Marshal()
	require.NoError(t, err)
	again, err := ParsePlan(data)
	require.NoError(t, err)
	assert.Equal(t, plan, again)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParsePlan([]byte("targets: [unclosed"))
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, target.Direct, m)

	m, err = ParseMode("Library")
	require.NoError(t, err)
	assert.Equal(t, target.Library, m)

	_, err = ParseMode("thread")
	assert.Error(t, err)
}
