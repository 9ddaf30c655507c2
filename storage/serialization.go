// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/callscope/core"
)

// MarshalVectorRow serializes a VectorRow to bytes.
func MarshalVectorRow(row *VectorRow) []byte {
	buf := make([]byte, vectorRowSize(row))
	marshalVectorRow(row, buf)
	return buf
}

// UnmarshalVectorRow deserializes a VectorRow from bytes.
func UnmarshalVectorRow(data []byte) (*VectorRow, error) {
	row, _, err := unmarshalVectorRow(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector row: %w", ErrSerializationFailed, err)
	}
	return row, nil
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(job *core.Job) []byte {
	buf := make([]byte, jobSize(job))
	marshalJob(job, buf)
	return buf
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	job, err := unmarshalJob(data)
	if err != nil {
		return nil, fmt.Errorf("%w: job: %w", ErrSerializationFailed, err)
	}
	return job, nil
}

// Field order: Position, ChunkID, Deleted, len(Vector), Vector...
func vectorRowSize(row *VectorRow) int {
	size := varint.Uint64.Size(row.Position)
	size += ord.String.Size(row.ChunkID)
	size += ord.Bool.Size(row.Deleted)
	size += varint.PositiveInt.Size(len(row.Vector))
	for _, v := range row.Vector {
		size += raw.Float32.Size(v)
	}
	return size
}

func marshalVectorRow(row *VectorRow, bs []byte) int {
	n := varint.Uint64.Marshal(row.Position, bs)
	n += ord.String.Marshal(row.ChunkID, bs[n:])
	n += ord.Bool.Marshal(row.Deleted, bs[n:])
	n += varint.PositiveInt.Marshal(len(row.Vector), bs[n:])
	for _, v := range row.Vector {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	return n
}

func unmarshalVectorRow(bs []byte) (*VectorRow, int, error) {
	var (
		row = &VectorRow{}
		n   int
		m   int
		err error
	)
	if row.Position, m, err = varint.Uint64.Unmarshal(bs); err != nil {
		return nil, n, err
	}
	n += m
	if row.ChunkID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if row.Deleted, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	var length int
	if length, m, err = varint.PositiveInt.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += m
	if length < 0 || length*4 > len(bs)-n {
		return nil, n, ErrTruncatedData
	}
	row.Vector = make([]float32, length)
	for i := range row.Vector {
		if row.Vector[i], m, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += m
	}
	return row, n, nil
}

// Field order: ID, Path, State, FailedStage, Error, CallID, ChunkCount, StartedAt, FinishedAt.
// Times are Unix microseconds; 0 encodes the zero time.
func jobStrings(job *core.Job) []string {
	return []string{job.ID, job.Path, string(job.State), string(job.FailedStage), job.Error, job.CallID}
}

func jobSize(job *core.Job) int {
	size := 0
	for _, s := range jobStrings(job) {
		size += ord.String.Size(s)
	}
	size += varint.PositiveInt.Size(job.ChunkCount)
	size += varint.Int64.Size(timeToMicro(job.StartedAt))
	size += varint.Int64.Size(timeToMicro(job.FinishedAt))
	return size
}

func marshalJob(job *core.Job, bs []byte) int {
	n := 0
	for _, s := range jobStrings(job) {
		n += ord.String.Marshal(s, bs[n:])
	}
	n += varint.PositiveInt.Marshal(job.ChunkCount, bs[n:])
	n += varint.Int64.Marshal(timeToMicro(job.StartedAt), bs[n:])
	n += varint.Int64.Marshal(timeToMicro(job.FinishedAt), bs[n:])
	return n
}

func unmarshalJob(bs []byte) (*core.Job, error) {
	fields := make([]string, 6)
	n := 0
	for i := range fields {
		s, m, err := ord.String.Unmarshal(bs[n:])
		if err != nil {
			return nil, err
		}
		fields[i] = s
		n += m
	}
	chunkCount, m, err := varint.PositiveInt.Unmarshal(bs[n:])
	if err != nil {
		return nil, err
	}
	n += m
	started, m, err := varint.Int64.Unmarshal(bs[n:])
	if err != nil {
		return nil, err
	}
	n += m
	finished, _, err := varint.Int64.Unmarshal(bs[n:])
	if err != nil {
		return nil, err
	}

	return &core.Job{
		ID:          fields[0],
		Path:        fields[1],
		State:       core.JobState(fields[2]),
		FailedStage: core.JobState(fields[3]),
		Error:       fields[4],
		CallID:      fields[5],
		ChunkCount:  chunkCount,
		StartedAt:   microToTime(started),
		FinishedAt:  microToTime(finished),
	}, nil
}

func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}
