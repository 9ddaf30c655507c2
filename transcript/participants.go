package transcript

import (
	"slices"
	"strings"

	"github.com/poiesic/callscope/core"
)

// Participants returns the sorted, distinct participant names of a transcript.
// Labels carrying a parenthetical are rewritten as "Name (Role)", so
// "AE (Jordan)" is reported as "Jordan (AE)".
func Participants(turns []core.Turn) []string {
	seen := make(map[string]struct{}, len(turns))
	participants := make([]string, 0)
	for _, turn := range turns {
		name := participantName(turn.RawSpeaker)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		participants = append(participants, name)
	}
	slices.Sort(participants)
	return participants
}

func participantName(raw string) string {
	raw = strings.TrimSpace(raw)
	role, rest, found := strings.Cut(raw, "(")
	if !found {
		return raw
	}
	role = strings.TrimSpace(role)
	name := strings.TrimSpace(strings.ReplaceAll(rest, ")", ""))
	switch {
	case name == "":
		return role
	case role == "":
		return name
	}
	return name + " (" + role + ")"
}
