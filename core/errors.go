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


package core

import "errors"

// Error taxonomy shared by every layer.
var (
	// ErrMalformedInput indicates a transcript that yielded no speaker turns.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidInput indicates text a remote capability cannot accept.
	ErrInvalidInput = errors.New("invalid input text")

	// ErrRemoteUnavailable indicates a remote capability failed or answered garbage.
	ErrRemoteUnavailable = errors.New("remote capability unavailable")

	// ErrRemoteTimeout indicates a remote capability did not answer in time.
	ErrRemoteTimeout = errors.New("remote capability timeout")

	// ErrClassificationInvalid indicates the classifier returned a label outside the known set.
	ErrClassificationInvalid = errors.New("classification invalid")

	// ErrAtomicityViolation indicates a failed ingestion could not be rolled back.
	ErrAtomicityViolation = errors.New("atomicity violation")

	// ErrStaleIndexEntry indicates a vector index row without a stored chunk.
	ErrStaleIndexEntry = errors.New("stale index entry")

	// ErrUnsafeQuery indicates generated SQL that is not read-only.
	ErrUnsafeQuery = errors.New("unsafe query")

	// ErrCallNotFound indicates a call reference that matched nothing.
	ErrCallNotFound = errors.New("call not found")
)

// Domain validation errors
var (
	// ErrInvalidCall indicates a Call failed validation.
	ErrInvalidCall = errors.New("invalid call")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingID indicates an identifier field is empty.
	ErrMissingID = errors.New("identifier cannot be empty")

	// ErrChunkSequence indicates chunk positions are not 0..n-1.
	ErrChunkSequence = errors.New("chunk sequence is not contiguous")
)

// IsRemoteFailure reports whether err came from an unavailable or slow remote capability.
func IsRemoteFailure(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, ErrRemoteTimeout)
}
