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


package badger

import (
	"bytes"
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{backend: backend}
}

// SaveJob inserts or replaces a job and its start-time index entry.
func (r *JobRepository) SaveJob(ctx context.Context, job *core.Job) error {
	if job.ID == "" {
		return core.ErrMissingID
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeJobKey(job.ID), storage.MarshalJob(job)); err != nil {
			return err
		}
		if err := tx.Set(makeJobStartKey(job.StartedAt, job.ID), []byte(job.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var job *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		job, err = readJob(tx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return job, err
}

// ListJobs returns jobs newest first by walking the start-time index backwards.
func (r *JobRepository) ListJobs(ctx context.Context, limit int) ([]*core.Job, error) {
	jobs := make([]*core.Job, 0)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(jobStartPrefix)
		// In reverse mode Seek lands on the largest key <= seek.
		seek := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xFF}, 9)...)
		for iter.Seek(seek); iter.ValidForPrefix(prefix); iter.Next() {
			if limit > 0 && len(jobs) >= limit {
				break
			}
			key := iter.Item().Key()
			id := string(key[len(prefix)+8:])
			job, err := readJob(tx, id)
			if err != nil {
				return err
			}
			if job != nil {
				jobs = append(jobs, job)
			}
		}
		return nil
	}, false)
	return jobs, err
}

// CountJobsByState returns the number of jobs currently in state.
func (r *JobRepository) CountJobsByState(ctx context.Context, state core.JobState) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				job, err := storage.UnmarshalJob(val)
				if err != nil {
					return err
				}
				if job.State == state {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return count, err
}

// readJob returns nil, nil when the job doesn't exist.
func readJob(tx *badger.Txn, id string) (*core.Job, error) {
	item, err := tx.Get(makeJobKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job *core.Job
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}
