package main

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/callscope/transcript"
)

func TestWriteTranscripts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	paths, err := writeTranscripts(dir, linesFromSlice(utterances), 3, 8, 42)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "1_call.txt"), paths[0])

	for _, path := range paths {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		parsed, err := transcript.Parse(string(data))
		require.NoError(t, err, path)
		assert.Len(t, parsed.Turns, 8)
		assert.Len(t, transcript.Participants(parsed.Turns), 2)
	}

	t.Run("same seed writes the same files", func(t *testing.T) {
		again := filepath.Join(t.TempDir(), "data")
		_, err := writeTranscripts(again, linesFromSlice(utterances), 3, 8, 42)
		require.NoError(t, err)
		for _, name := range []string{"1_call.txt", "2_call.txt", "3_call.txt"} {
			a, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			b, err := os.ReadFile(filepath.Join(again, name))
			require.NoError(t, err)
			assert.Equal(t, string(a), string(b))
		}
	})

	t.Run("empty source", func(t *testing.T) {
		_, err := writeTranscripts(t.TempDir(), linesFromSlice(nil), 1, 4, 1)
		assert.Error(t, err)
	})
}

func TestLinesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n\n  second  \n"), 0o644))

	source, err := linesFromFile(path)
	require.NoError(t, err)
	var lines []string
	for line := range source {
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"first", "second"}, lines)

	_, err = linesFromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestRenderTranscript_Timestamps(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	text := renderTranscript(rng, []string{"hello"}, 40)
	parsed, err := transcript.Parse(text)
	require.NoError(t, err)
	require.Len(t, parsed.Turns, 40)
	assert.Equal(t, "00:00", parsed.Turns[0].Timestamp)
}
