package storage

import (
	"testing"
	"time"

	"github.com/poiesic/callscope/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalVectorRow(t *testing.T) {
	tests := []struct {
		name string
		row  *VectorRow
	}{
		{"live row", &VectorRow{Position: 7, ChunkID: "abc123", Vector: []float32{0.6, -0.8, 0}}},
		{"tombstoned row", &VectorRow{Position: 1 << 40, ChunkID: "deleted", Vector: []float32{1}, Deleted: true}},
		{"empty vector", &VectorRow{Position: 0, ChunkID: "x", Vector: []float32{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalVectorRow(tt.row)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalVectorRow(data)
			require.NoError(t, err)
			assert.Equal(t, tt.row, decoded)
		})
	}
}

func TestUnmarshalVectorRow_Invalid(t *testing.T) {
	data := MarshalVectorRow(&VectorRow{Position: 3, ChunkID: "abc", Vector: []float32{1, 2, 3}})

	for _, cut := range []int{0, 2, len(data) - 1} {
		_, err := UnmarshalVectorRow(data[:cut])
		assert.ErrorIs(t, err, ErrSerializationFailed, "cut at %d", cut)
	}
}

func TestMarshalUnmarshalJob(t *testing.T) {
	started := time.Date(2025, 3, 14, 9, 26, 53, 589000, time.UTC)

	tests := []struct {
		name string
		job  *core.Job
	}{
		{
			name: "complete job",
			job: &core.Job{
				ID: "job-1", Path: "/data/1_demo_call.txt", State: core.JobComplete,
				CallID: "call-1", ChunkCount: 12, StartedAt: started, FinishedAt: started.Add(2 * time.Second),
			},
		},
		{
			name: "failed job",
			job: &core.Job{
				ID: "job-2", Path: "/data/bad.txt", State: core.JobFailed, FailedStage: core.JobEmbedded,
				Error: "remote capability timeout", StartedAt: started,
			},
		},
		{
			name: "pending job with zero times",
			job:  &core.Job{ID: "job-3", Path: "p", State: core.JobPending},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalJob(MarshalJob(tt.job))
			require.NoError(t, err)
			assert.Equal(t, tt.job, decoded)
		})
	}
}

func TestUnmarshalJob_Invalid(t *testing.T) {
	_, err := UnmarshalJob([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
