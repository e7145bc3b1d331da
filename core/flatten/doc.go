// Package flatten provides the flattened serialization used to move load states across a
// transaction boundary or into a snapshot.
//
// A Writer collects a flat stream of typed values (strings, ints, bools and handles). A
// Reader reads them back in the same order; reading a value of the wrong kind fails with
// ErrFormat. Collaborators that must not be inlined (loaders, providers, event sinks) are
// written as handles: names looked up in a HandleTable shared by both sides.
//
// # Usage
//
//	handles := flatten.NewHandleTable()
//	handles.Register("loader", loader)
//
//	w := flatten.NewWriter(handles)
//	w.WriteString("hello")
//	_ = w.WriteHandle(loader)
//	data, _ := w.Bytes()
//
//	r, _ := flatten.NewReader(data, handles)
//	s, _ := r.ReadString()
//	l, _ := r.ReadHandle()
package flatten
