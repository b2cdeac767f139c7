package store

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendGet(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Append(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, 1, s.Append(json.RawMessage(`[1,2]`)))
	assert.Equal(t, 2, s.Len())

	rec, err := s.Get(0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(rec))

	rec, err = s.Get(1)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(rec))
}

func TestStore_Get_OutOfRange(t *testing.T) {
	s := New()
	_, err := s.Get(0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(-1)
	assert.ErrorIs(t, err, ErrNotFound)

	s.Append(json.RawMessage(`1`))
	_, err = s.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete_Shifts(t *testing.T) {
	s := New()
	s.Append(json.RawMessage(`"a"`))
	s.Append(json.RawMessage(`"b"`))
	s.Append(json.RawMessage(`"c"`))

	require.NoError(t, s.Delete(0))
	rec, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(rec))
	assert.Equal(t, 2, s.Len())

	assert.ErrorIs(t, s.Delete(2), ErrNotFound)
	assert.Equal(t, 2, s.Len())
}

func TestStore_Append_Copies(t *testing.T) {
	s := New()
	buf := []byte(`{"a":1}`)
	s.Append(buf)
	buf[2] = 'z'
	rec, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(rec))
}

func TestStore_List_Snapshot(t *testing.T) {
	s := New()
	assert.NotNil(t, s.List())
	assert.Empty(t, s.List())

	s.Append(json.RawMessage(`1`))
	list := s.List()
	require.NoError(t, s.Delete(0))
	assert.Len(t, list, 1)
	assert.Empty(t, s.List())
}

func TestStore_Concurrent(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Append(json.RawMessage(`{}`))
		}()
		go func() {
			defer wg.Done()
			_ = s.List()
			_, _ = s.Get(0)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())

	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Delete(0))
		}()
	}
	wg.Wait()
	assert.Equal(t, 25, s.Len())
}
