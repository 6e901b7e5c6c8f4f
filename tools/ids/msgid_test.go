package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMsgIDIsValid(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		id := NewMsgID()
		require.True(t, ValidMsgID(id), id)
		_, dup := seen[id]
		require.False(t, dup, id)
		seen[id] = struct{}{}
	}
}

func TestValidMsgID(t *testing.T) {
	require.True(t, ValidMsgID("b2f7c6b0-8e85-4d3a-9f63-0a4f6a1d2e3f"))

	bad := []string{
		"",
		"not-a-uuid",
		"b2f7c6b0-8e85-1d3a-9f63-0a4f6a1d2e3f", // v1 不收
		"b2f7c6b08e854d3a9f630a4f6a1d2e3f",     // 没有连字符
	}
	for _, id := range bad {
		require.False(t, ValidMsgID(id), id)
	}
}
