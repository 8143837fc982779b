package serializer

import (
	"context"
	"os"
	"reflect"
	"sync"
	"time"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	rtypeType   = reflect.TypeOf((*reflect.Type)(nil)).Elem()
)

// opaqueTypes hold process resources whose state is meaningless outside
// the running process. They are recorded as empty elements.
var opaqueTypes = []reflect.Type{
	reflect.TypeOf((*sync.Mutex)(nil)).Elem(),
	reflect.TypeOf((*sync.RWMutex)(nil)).Elem(),
	reflect.TypeOf((*sync.WaitGroup)(nil)).Elem(),
	reflect.TypeOf((*sync.Once)(nil)).Elem(),
	reflect.TypeOf((*sync.Pool)(nil)).Elem(),
	reflect.TypeOf((*sync.Map)(nil)).Elem(),
	reflect.TypeOf((*sync.Cond)(nil)).Elem(),
}

func registerBuiltins(r *Registry) {
	for _, t := range opaqueTypes {
		r.Register(t, Noop)
	}

	r.Register(reflect.TypeOf((*time.Time)(nil)).Elem(), ConverterFunc(marshalTime))
	r.Register(reflect.TypeOf(time.Duration(0)), ConverterFunc(marshalDuration))
	r.Register(reflect.TypeOf(&os.File{}), ConverterFunc(marshalFile))

	r.RegisterInterface(contextType, Noop)
	r.RegisterInterface(rtypeType, ConverterFunc(marshalReflectType))
	r.RegisterInterface(errorType, ConverterFunc(marshalError))
}

func marshalTime(w *Writer, tag string, v reflect.Value) error {
	i, ok := interfaceOf(v)
	if !ok {
		return w.kindValue(tag, v)
	}
	w.Leaf(w.tagFor(tag, v.Type()), i.(time.Time).Format(time.RFC3339Nano))
	return nil
}

func marshalDuration(w *Writer, tag string, v reflect.Value) error {
	w.Leaf(w.tagFor(tag, v.Type()), time.Duration(v.Int()).String())
	return nil
}

func marshalFile(w *Writer, tag string, v reflect.Value) error {
	name := w.tagFor(tag, v.Type())
	if v.IsNil() {
		w.Empty("null")
		return nil
	}
	i, ok := interfaceOf(v)
	if !ok {
		w.Empty(name)
		return nil
	}
	w.Empty(name, Attr{Name: "path", Value: i.(*os.File).Name()})
	return nil
}

func marshalReflectType(w *Writer, tag string, v reflect.Value) error {
	i, ok := interfaceOf(v)
	if !ok || isNilable(v) && v.IsNil() {
		w.Empty(w.tagFor(tag, v.Type()))
		return nil
	}
	w.Leaf(w.tagFor(tag, v.Type()), i.(reflect.Type).String())
	return nil
}

func marshalError(w *Writer, tag string, v reflect.Value) error {
	if isNilable(v) && v.IsNil() {
		w.Empty("null")
		return nil
	}
	i, ok := interfaceOf(v)
	if !ok {
		return w.kindValue(tag, v)
	}
	w.Leaf(w.tagFor(tag, v.Type()), i.(error).Error())
	return nil
}
