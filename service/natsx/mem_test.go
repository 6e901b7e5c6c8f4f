package natsx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStreamPublishSubscribe(t *testing.T) {
	s := NewMemStream()

	var a, b [][]byte
	cancelA, err := s.Subscribe("sub.x", func(_ string, data []byte) { a = append(a, data) })
	require.NoError(t, err)
	_, err = s.Subscribe("sub.x", func(_ string, data []byte) { b = append(b, data) })
	require.NoError(t, err)

	require.NoError(t, s.Publish("sub.x", []byte("one")))
	require.NoError(t, s.Publish("sub.y", []byte("elsewhere")))
	require.Len(t, a, 1)
	require.Len(t, b, 1)

	cancelA()
	cancelA() // 幂等
	require.NoError(t, s.Publish("sub.x", []byte("two")))
	require.Len(t, a, 1)
	require.Len(t, b, 2)
}

func TestMemStreamCopiesPayload(t *testing.T) {
	s := NewMemStream()
	var got []byte
	_, err := s.Subscribe("sub.x", func(_ string, data []byte) { got = data })
	require.NoError(t, err)

	payload := []byte("hello")
	require.NoError(t, s.Publish("sub.x", payload))
	payload[0] = 'X'
	require.Equal(t, "hello", string(got))
}
