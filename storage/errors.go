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

import "errors"

var (
	// ErrNotFound is returned when a call, chunk, job or vector row does not exist
	// or belongs to a call that is still hidden.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a call ID, chunk ID or vector position is
	// written twice.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery covers bad arguments to a lookup and SQL that cannot run
	// on the read-only analytics connection.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed wraps mus-go and JSON column decoding failures.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData means an encoded record ended before all fields were read.
	ErrTruncatedData = errors.New("truncated data")
)
