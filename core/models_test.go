package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIDFor(t *testing.T) {
	tests := []struct {
		name     string
		callA    string
		seqA     int
		callB    string
		seqB     int
		wantSame bool
	}{
		{"same call and position", "call-1", 0, "call-1", 0, true},
		{"different position", "call-1", 0, "call-1", 1, false},
		{"different call", "call-1", 3, "call-2", 3, false},
		{"no ambiguity across separator", "call-1", 12, "call-11", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ChunkIDFor(tt.callA, tt.seqA)
			b := ChunkIDFor(tt.callB, tt.seqB)
			assert.Len(t, a, 32, "128-bit hex ID")
			if tt.wantSame {
				assert.Equal(t, a, b)
			} else {
				assert.NotEqual(t, a, b)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("[00:01] AE: hello")
	b := Fingerprint("[00:01] AE: hello")
	c := Fingerprint("[00:01] AE: hello!")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestNewCallID(t *testing.T) {
	id := NewCallID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewCallID())
}

func TestIsRemoteFailure(t *testing.T) {
	assert.True(t, IsRemoteFailure(ErrRemoteUnavailable))
	assert.True(t, IsRemoteFailure(ErrRemoteTimeout))
	assert.False(t, IsRemoteFailure(ErrInvalidInput))
	assert.False(t, IsRemoteFailure(nil))
}
