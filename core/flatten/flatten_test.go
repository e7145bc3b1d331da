package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collaborator struct{ name string }

func TestWriterReader(t *testing.T) {
	loader := &collaborator{name: "loader"}
	handles := NewHandleTable()
	handles.Register("loader", loader)

	w := NewWriter(handles)
	w.WriteString("complete")
	w.WriteInt(-1)
	w.WriteBool(true)
	require.NoError(t, w.WriteHandle(loader))
	require.NoError(t, w.WriteHandle(nil))
	assert.Equal(t, 5, w.Len())

	data, err := w.Bytes()
	require.NoError(t, err)

	r, err := NewReader(data, handles)
	require.NoError(t, err)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "complete", s)
	i, err := r.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, -1, i)
	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)
	h, err := r.ReadHandle()
	require.NoError(t, err)
	assert.Same(t, loader, h)
	h, err = r.ReadHandle()
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.True(t, r.Done())
}

func TestReader_Errors(t *testing.T) {
	w := NewWriter(nil)
	w.WriteInt(3)
	w.WriteString("")
	data, err := w.Bytes()
	require.NoError(t, err)

	r, err := NewReader(data, nil)
	require.NoError(t, err)

	_, err = r.ReadString()
	assert.ErrorIs(t, err, ErrFormat)

	_, err = r.ReadInt()
	require.NoError(t, err)
	_, err = r.ReadString()
	require.NoError(t, err)
	_, err = r.ReadBool()
	assert.ErrorIs(t, err, ErrFormat)

	_, err = NewReader([]byte("{"), nil)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestHandles(t *testing.T) {
	first, second := &collaborator{name: "a"}, &collaborator{name: "b"}
	handles := NewHandleTable()
	handles.Register("provider", first)
	handles.Register("provider", second)

	name, ok := handles.NameOf(second)
	assert.True(t, ok)
	assert.Equal(t, "provider", name)
	_, ok = handles.NameOf(first)
	assert.False(t, ok)

	w := NewWriter(handles)
	assert.Error(t, w.WriteHandle(first))

	sinks := []func(){func() {}}
	handles.Register("sinks", sinks)
	_, ok = handles.NameOf(sinks)
	assert.False(t, ok)
	assert.ErrorContains(t, w.WriteHandle(sinks), "not comparable")
	name, ok = handles.NameOf(second)
	assert.True(t, ok)
	assert.Equal(t, "provider", name)

	r, err := NewReader([]byte(`[{"k":"h","s":"missing"}]`), handles)
	require.NoError(t, err)
	_, err = r.ReadHandle()
	assert.Error(t, err)
}
