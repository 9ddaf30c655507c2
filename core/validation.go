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

import (
	"fmt"
)

// ValidateCall validates a Call according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Filename must not be empty
//   - Content must not be empty
func ValidateCall(call *Call) error {
	if call == nil {
		return fmt.Errorf("%w: call is nil", ErrInvalidCall)
	}
	if call.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCall, ErrMissingID)
	}
	if call.Filename == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrInvalidCall)
	}
	if call.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCall, ErrEmptyContent)
	}
	return nil
}

// ValidateChunks validates the chunks of one call.
//
// Validation rules:
//   - every chunk has an ID, belongs to callID and has content
//   - Seq values are exactly 0..len(chunks)-1 in slice order
func ValidateChunks(callID string, chunks []*Chunk) error {
	for i, chunk := range chunks {
		if chunk == nil {
			return fmt.Errorf("%w: chunk %d is nil", ErrInvalidChunk, i)
		}
		if chunk.ID == "" {
			return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMissingID)
		}
		if chunk.CallID != callID {
			return fmt.Errorf("%w: chunk %s belongs to call %q, want %q", ErrInvalidChunk, chunk.ID, chunk.CallID, callID)
		}
		if chunk.Content == "" {
			return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
		}
		if chunk.Seq != i {
			return fmt.Errorf("%w: %w: position %d has seq %d", ErrInvalidChunk, ErrChunkSequence, i, chunk.Seq)
		}
	}
	return nil
}
