package serializer

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"github.com/willibrandon/ChronoCapture/pkg/target"
)

// Attr is an element attribute.
type Attr struct {
	Name  string
	Value string
}

// Writer accumulates the elements of one record. Elements are indented two
// spaces per level and written one per line.
type Writer struct {
	b        strings.Builder
	registry *Registry
	indent   int
	depth    int
	maxDepth int
	visiting map[uintptr]bool
}

func newWriter(registry *Registry, maxDepth int) *Writer {
	return &Writer{
		registry: registry,
		maxDepth: maxDepth,
		visiting: make(map[uintptr]bool),
	}
}

// String returns the text written so far.
func (w *Writer) String() string {
	return w.b.String()
}

func (w *Writer) line(s string) {
	for i := 0; i < w.indent; i++ {
		w.b.WriteString("  ")
	}
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

// Leaf writes <tag>text</tag>.
func (w *Writer) Leaf(tag, text string) {
	w.line("<" + tag + ">" + escape(text) + "</" + tag + ">")
}

// Empty writes a self-closing element.
func (w *Writer) Empty(tag string, attrs ...Attr) {
	var b strings.Builder
	b.WriteString("<" + tag)
	for _, a := range attrs {
		b.WriteString(" " + a.Name + `="` + escape(a.Value) + `"`)
	}
	b.WriteString("/>")
	w.line(b.String())
}

// Open starts an element with children.
func (w *Writer) Open(tag string) {
	w.line("<" + tag + ">")
	w.indent++
}

// Close ends an element started with Open.
func (w *Writer) Close(tag string) {
	w.indent--
	w.line("</" + tag + ">")
}

// Value renders v. An empty tag names the element after v's type.
func (w *Writer) Value(tag string, v reflect.Value) error {
	if !v.IsValid() {
		w.Empty("null")
		return nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			w.Empty("null")
			return nil
		}
		return w.Value(tag, v.Elem())
	}

	if w.depth >= w.maxDepth {
		w.Empty(w.tagFor(tag, v.Type()), Attr{Name: "truncated", Value: "true"})
		return nil
	}
	w.depth++
	defer func() { w.depth-- }()

	if conv, ok := w.registry.Lookup(v.Type()); ok {
		return conv.Marshal(w, tag, v)
	}
	return w.kindValue(tag, v)
}

// kindValue renders v by its kind, ignoring registered converters for
// v's own type.
func (w *Writer) kindValue(tag string, v reflect.Value) error {
	t := v.Type()
	switch v.Kind() {
	case reflect.Bool:
		w.Leaf(w.tagFor(tag, t), strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.Leaf(w.tagFor(tag, t), strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.Leaf(w.tagFor(tag, t), strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32:
		w.Leaf(w.tagFor(tag, t), strconv.FormatFloat(v.Float(), 'g', -1, 32))
	case reflect.Float64:
		w.Leaf(w.tagFor(tag, t), strconv.FormatFloat(v.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		w.Leaf(w.tagFor(tag, t), strconv.FormatComplex(v.Complex(), 'g', -1, t.Bits()))
	case reflect.String:
		w.Leaf(w.tagFor(tag, t), v.String())

	case reflect.Pointer:
		if v.IsNil() {
			w.Empty("null")
			return nil
		}
		ptr := v.Pointer()
		if w.visiting[ptr] {
			w.Empty(w.tagFor(tag, t.Elem()), Attr{Name: "reference", Value: "cycle"})
			return nil
		}
		w.visiting[ptr] = true
		defer delete(w.visiting, ptr)
		return w.Value(tag, v.Elem())

	case reflect.Struct:
		name := w.tagFor(tag, t)
		if t.NumField() == 0 {
			w.Empty(name)
			return nil
		}
		w.Open(name)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Name == "_" {
				continue
			}
			fv := v.Field(i)
			if isNilable(fv) && fv.IsNil() {
				continue
			}
			if err := w.Value(target.TagName(f.Name), fv); err != nil {
				return err
			}
		}
		w.Close(name)

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			w.Empty("null")
			return nil
		}
		name := w.tagFor(tag, t)
		if t.Elem().Kind() == reflect.Uint8 {
			w.Leaf(name, base64.StdEncoding.EncodeToString(bytesOf(v)))
			return nil
		}
		if v.Len() == 0 {
			w.Empty(name)
			return nil
		}
		w.Open(name)
		for i := 0; i < v.Len(); i++ {
			if err := w.Value("", v.Index(i)); err != nil {
				return err
			}
		}
		w.Close(name)

	case reflect.Map:
		if v.IsNil() {
			w.Empty("null")
			return nil
		}
		name := w.tagFor(tag, t)
		if v.Len() == 0 {
			w.Empty(name)
			return nil
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keyOf(keys[i])) < fmt.Sprint(keyOf(keys[j]))
		})
		w.Open(name)
		for _, k := range keys {
			w.Open("entry")
			if err := w.Value("", k); err != nil {
				return err
			}
			if err := w.Value("", v.MapIndex(k)); err != nil {
				return err
			}
			w.Close("entry")
		}
		w.Close(name)

	default:
		// chan, func, unsafe.Pointer
		return &NoConverterError{Type: t}
	}
	return nil
}

func (w *Writer) tagFor(tag string, t reflect.Type) string {
	if tag != "" {
		return tag
	}
	return target.TagName(typeName(t))
}

// typeName returns the fully qualified name of t, using the import path
// for named types.
func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

func bytesOf(v reflect.Value) []byte {
	b := make([]byte, v.Len())
	for i := range b {
		b[i] = byte(v.Index(i).Uint())
	}
	return b
}

// keyOf returns a comparable rendering of a map key for ordering.
func keyOf(k reflect.Value) any {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%020d", uint64(k.Int())^(1<<63))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fmt.Sprintf("%020d", k.Uint())
	}
	if i, ok := interfaceOf(k); ok {
		return fmt.Sprintf("%v", i)
	}
	return k.Type().String()
}

// interfaceOf returns v as an interface value even when v was reached
// through unexported fields, provided it is addressable.
func interfaceOf(v reflect.Value) (any, bool) {
	if v.CanInterface() {
		return v.Interface(), true
	}
	if v.CanAddr() {
		return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem().Interface(), true
	}
	return nil, false
}

func escape(s string) string {
	var b strings.Builder
	// EscapeText only fails when the writer fails
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
