package reembed

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Add(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 100, 10)

	tracker.Start()
	assert.True(t, tracker.started)

	tracker.Add(25)
	tracker.Add(25)
	tracker.Add(80)

	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
	output := buf.String()
	assert.Contains(t, output, "25/100 chunks")
	assert.Contains(t, output, "100/100 chunks", "progress is capped at total")
	assert.Contains(t, output, "100.0%")
}

func TestProgressTracker_Interval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 1000, 100)

	tracker.Start()
	tracker.Add(50)
	assert.Empty(t, buf.String(), "below the interval nothing is printed")

	tracker.Add(50)
	assert.Contains(t, buf.String(), "100/1000")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 100, 10)

	tracker.Start()
	tracker.Add(5)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "5/100")
	assert.Contains(t, output, "\n")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 100, 10)

	tracker.Add(50)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Equal(t, time.Duration(0), tracker.Elapsed())
}

func TestProgressTracker_NilWriter(t *testing.T) {
	tracker := NewProgressTracker(nil, "chunks", 10, 0)
	tracker.Start()
	tracker.Add(10)
	tracker.Finish()
	assert.Equal(t, 10, tracker.current)
}
