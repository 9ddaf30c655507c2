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


package strategy

import "errors"

var (
	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrGeneratorRequired is returned when a text generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrRepositoryRequired is returned when a call repository is not provided.
	ErrRepositoryRequired = errors.New("call repository required")

	// ErrQuerierRequired is returned when an analytics querier is not provided.
	ErrQuerierRequired = errors.New("analytics querier required")

	// ErrIngesterRequired is returned when a file ingester is not provided.
	ErrIngesterRequired = errors.New("file ingester required")

	// ErrFileNotFound is returned when a referenced transcript file does not
	// exist in the data directory.
	ErrFileNotFound = errors.New("file not found in data directory")

	// ErrNoReferences is returned when a request names no call or file.
	ErrNoReferences = errors.New("no call or file referenced")
)
