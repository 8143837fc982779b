package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorIdentity(t *testing.T) {
	d := New("public", "github.com/acme/shop/cart.Cart", "Total", []string{"int", "string"}, "float64")

	assert.Equal(t, "github.com/acme/shop/cart.Cart.Total(int,string)", d.Signature())
	assert.Equal(t, "github.com/acme/shop/cart.Cart.Total_int,string", d.FQN())
	assert.Equal(t, d.FQN(), d.Key())
	assert.Equal(t, "(int,string)float64", d.ParamSignature())
	assert.Equal(t, "github.com/acme/shop/cart", d.Package())
	assert.False(t, d.IsNested())
	assert.True(t, d.Matches("github.com/acme/shop/cart.Cart", "Total"))
	assert.False(t, d.Matches("github.com/acme/shop/cart.Cart", "Add"))
}

func TestDescriptorOverloadsHaveDistinctSignatures(t *testing.T) {
	a := New("public", "pkg.Calc", "Add", []string{"int"}, "int")
	b := New("public", "pkg.Calc", "Add", []string{"float64"}, "float64")
	assert.NotEqual(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestDescriptorParamsAreCopied(t *testing.T) {
	params := []string{"int"}
	d := New("public", "pkg.T", "M", params, "void")
	params[0] = "string"
	assert.Equal(t, []string{"int"}, d.Params)
}

func TestNewNested(t *testing.T) {
	parent := New("public", "pkg.Service", "Handle", nil, "int")

	child, err := NewNested(parent, Direct, "pkg.Repo", "Count", []string{"string"}, "int")
	require.NoError(t, err)
	assert.True(t, child.IsNested())
	assert.Same(t, parent, child.Parent)
	assert.Equal(t, "nested-pkg.Service.Handle/pkg.Repo.Count_string", child.Key())
	assert.Equal(t, []*Descriptor{child}, parent.Nested)
	assert.Equal(t, "(string)int", child.ParamSignature())

	_, err = NewNested(nil, Direct, "pkg.Repo", "Count", nil, "int")
	assert.Error(t, err)

	_, err = NewNested(parent, TopLevel, "pkg.Repo", "Count", nil, "int")
	assert.Error(t, err)
	assert.Equal(t, []*Descriptor{child}, parent.Nested, "rejected call-sites are not registered")
	assert.Equal(t, "pkg.Service.Handle()", parent.Signature())
	assert.Equal(t, "pkg.Service.Handle", parent.Key())
}

func TestPackageOf(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"github.com/acme/shop/cart.Cart", "github.com/acme/shop/cart"},
		{"main.Server", "main"},
		{"github.com/acme/shop/cart", "github.com/acme/shop/cart"},
		{"Server", ""},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, PackageOf(tt.typ))
		})
	}
}

func TestTagName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "main.Order", "main.Order"},
		{"slice", "[]int", "int-array"},
		{"nested slice", "[][]string", "string-array-array"},
		{"fixed array", "[4]byte", "byte-array"},
		{"java array", "java.lang.String[]", "java.lang.String-array"},
		{"pointer", "*pkg.Node", "pkg.Node"},
		{"import path", "github.com/acme/cart.Item", "github.com.acme.cart.Item"},
		{"inner type", "pkg.Outer$Inner", "pkg.Outer.Inner"},
		{"map", "map[string]int", "map.of.string.int"},
		{"generic", "pkg.Pair[int,string]", "pkg.Pair.of.int_string"},
		{"leading digit", "9lives", "_9lives"},
		{"empty", "", "unnamed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TagName(tt.in))
		})
	}
}

func TestLiteralTypes(t *testing.T) {
	for _, typ := range []string{"int", "bool", "float64", "string", "java.lang.String", "long", "char"} {
		assert.True(t, IsLiteral(typ), typ)
	}
	for _, typ := range []string{"pkg.Order", "[]int", "*int", "error", "map[string]int"} {
		assert.False(t, IsLiteral(typ), typ)
	}
	assert.True(t, IsVoid(""))
	assert.True(t, IsVoid("void"))
	assert.False(t, IsVoid("int"))
}
