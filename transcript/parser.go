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


package transcript

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/callscope/core"
)

var (
	turnPattern        = regexp.MustCompile(`^\[(\d{2}:\d{2})\]\s*([^:]+):\s*(.+)$`)
	actionPattern      = regexp.MustCompile(`^\[\d{2}:\d{2}\]\s*\*.*\*\s*$`)
	parentheticalStrip = regexp.MustCompile(`\s*\([^)]*\)`)
)

// DiagnosticReason explains why a line did not become part of a turn.
type DiagnosticReason string

const (
	// ReasonActionLine marks stage directions such as "[05:12] *screen share*".
	ReasonActionLine DiagnosticReason = "action line"
	// ReasonOrphanLine marks text that appears before the first speaker turn.
	ReasonOrphanLine DiagnosticReason = "orphan line"
)

// Diagnostic records a skipped input line.
type Diagnostic struct {
	Line   int
	Text   string
	Reason DiagnosticReason
}

// Transcript is the parsed form of a raw transcript.
type Transcript struct {
	Turns       []core.Turn
	Diagnostics []Diagnostic
}

// Parse converts raw transcript text into ordered speaker turns.
//
// Lines of the form "[HH:MM] Speaker: utterance" start a new turn. Other
// non-blank lines are continuations of the previous turn (bullets, numbered
// lists, wrapped text). Action lines and text before the first turn are
// skipped and recorded as diagnostics. Parse fails only when no turn is found.
func Parse(content string) (*Transcript, error) {
	t := &Transcript{}
	var current *core.Turn

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if actionPattern.MatchString(line) {
			t.Diagnostics = append(t.Diagnostics, Diagnostic{Line: lineNo, Text: line, Reason: ReasonActionLine})
			continue
		}

		if m := turnPattern.FindStringSubmatch(line); m != nil {
			if current != nil {
				t.Turns = append(t.Turns, *current)
			}
			raw := strings.TrimSpace(m[2])
			current = &core.Turn{
				Timestamp:  m[1],
				RawSpeaker: raw,
				Speaker:    CleanSpeaker(raw),
				Text:       strings.TrimSpace(m[3]),
				Line:       lineNo,
			}
			continue
		}

		if current == nil {
			t.Diagnostics = append(t.Diagnostics, Diagnostic{Line: lineNo, Text: line, Reason: ReasonOrphanLine})
			continue
		}
		current.Text += "\n" + line
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedInput, err)
	}

	if current != nil {
		t.Turns = append(t.Turns, *current)
	}

	if len(t.Turns) == 0 {
		return nil, fmt.Errorf("%w: no speaker turns found", core.ErrMalformedInput)
	}
	return t, nil
}

// CleanSpeaker removes parenthetical annotations from a speaker label.
// "AE (Jordan)" becomes "AE".
func CleanSpeaker(raw string) string {
	return strings.TrimSpace(parentheticalStrip.ReplaceAllString(raw, ""))
}
