package flatten

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrFormat reports a value stream that does not match what the reader expects.
var ErrFormat = errors.New("flatten: malformed stream")

type kind string

const (
	kindString kind = "s"
	kindInt    kind = "i"
	kindBool   kind = "b"
	kindHandle kind = "h"
)

type value struct {
	Kind kind   `json:"k"`
	Str  string `json:"s,omitempty"`
	Int  int64  `json:"i,omitempty"`
	Bool bool   `json:"b,omitempty"`
}

// HandleTable maps collaborators that are not serialized inline (loaders, providers,
// event sinks) to stable names. Registered objects must be comparable, e.g. pointers.
type HandleTable struct {
	names   []string
	objects []any
}

// NewHandleTable creates an empty table.
func NewHandleTable() *HandleTable {
	return &HandleTable{}
}

// Register adds obj under name, replacing an earlier registration of the same name.
func (t *HandleTable) Register(name string, obj any) {
	for i, n := range t.names {
		if n == name {
			t.objects[i] = obj
			return
		}
	}
	t.names = append(t.names, name)
	t.objects = append(t.objects, obj)
}

// NameOf returns the name obj was registered under. Non-comparable values are never
// found.
func (t *HandleTable) NameOf(obj any) (string, bool) {
	if !isComparable(obj) {
		return "", false
	}
	for i, o := range t.objects {
		if isComparable(o) && o == obj {
			return t.names[i], true
		}
	}
	return "", false
}

func isComparable(v any) bool {
	return v == nil || reflect.ValueOf(v).Comparable()
}

// Lookup returns the object registered under name.
func (t *HandleTable) Lookup(name string) (any, bool) {
	for i, n := range t.names {
		if n == name {
			return t.objects[i], true
		}
	}
	return nil, false
}

// Writer collects a flat, typed value stream.
type Writer struct {
	handles *HandleTable
	values  []value
}

// NewWriter creates a writer resolving handles through handles.
func NewWriter(handles *HandleTable) *Writer {
	if handles == nil {
		handles = NewHandleTable()
	}
	return &Writer{handles: handles}
}

func (w *Writer) WriteString(s string) { w.values = append(w.values, value{Kind: kindString, Str: s}) }

func (w *Writer) WriteInt(i int) { w.values = append(w.values, value{Kind: kindInt, Int: int64(i)}) }

func (w *Writer) WriteBool(b bool) { w.values = append(w.values, value{Kind: kindBool, Bool: b}) }

// WriteHandle writes the name obj is registered under. A nil obj is written as an
// empty handle.
func (w *Writer) WriteHandle(obj any) error {
	if obj == nil {
		w.values = append(w.values, value{Kind: kindHandle})
		return nil
	}
	if !isComparable(obj) {
		return fmt.Errorf("flatten: handle of type %T is not comparable", obj)
	}
	name, ok := w.handles.NameOf(obj)
	if !ok {
		return fmt.Errorf("flatten: no handle registered for %T", obj)
	}
	w.values = append(w.values, value{Kind: kindHandle, Str: name})
	return nil
}

// Len returns the number of values written.
func (w *Writer) Len() int { return len(w.values) }

// Bytes encodes the stream.
func (w *Writer) Bytes() ([]byte, error) {
	return json.Marshal(w.values)
}

// Reader reads a stream produced by Writer in the order it was written.
type Reader struct {
	handles *HandleTable
	values  []value
	pos     int
}

// NewReader decodes data and resolves handles through handles.
func NewReader(data []byte, handles *HandleTable) (*Reader, error) {
	var values []value
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if handles == nil {
		handles = NewHandleTable()
	}
	return &Reader{handles: handles, values: values}, nil
}

func (r *Reader) next(k kind) (value, error) {
	if r.pos >= len(r.values) {
		return value{}, fmt.Errorf("%w: unexpected end of stream at %d", ErrFormat, r.pos)
	}
	v := r.values[r.pos]
	if v.Kind != k {
		return value{}, fmt.Errorf("%w: value %d is %q, expected %q", ErrFormat, r.pos, v.Kind, k)
	}
	r.pos++
	return v, nil
}

func (r *Reader) ReadString() (string, error) {
	v, err := r.next(kindString)
	return v.Str, err
}

func (r *Reader) ReadInt() (int, error) {
	v, err := r.next(kindInt)
	return int(v.Int), err
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.next(kindBool)
	return v.Bool, err
}

// ReadHandle returns the object registered under the next handle, nil for an empty one.
func (r *Reader) ReadHandle() (any, error) {
	v, err := r.next(kindHandle)
	if err != nil {
		return nil, err
	}
	if v.Str == "" {
		return nil, nil
	}
	obj, ok := r.handles.Lookup(v.Str)
	if !ok {
		return nil, fmt.Errorf("flatten: unknown handle %q", v.Str)
	}
	return obj, nil
}

// Done reports whether the whole stream was consumed.
func (r *Reader) Done() bool { return r.pos == len(r.values) }
