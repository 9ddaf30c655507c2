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


// Package ai provides abstractions for the remote model services callscope uses.
//
// Two capabilities are defined: Embedder turns text into vectors for similarity
// search, and Generator produces text for classification, summaries, answers
// and SQL. AIProvider bundles both behind one lifecycle.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, openai.NewEmbedder) return
// interface types. Test constructors (mock.NewMockEmbedder, mock.NewMockGenerator)
// return concrete types so tests can inject behavior and inspect calls.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(key))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"budget concerns"})
//	reply, err := provider.Generator().Generate(ctx, ai.Prompt{
//	    System:      "You are a sales analyst.",
//	    User:        "Summarize the objections.",
//	    Temperature: 0.2,
//	})
package ai
