package router

import (
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

var (
	transcriptName = regexp.MustCompile(`[^\s/\\'"]+\.txt`)
	callIDPattern  = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
)

// ExtractFilenames returns the base names of every .txt file mentioned in
// text, de-duplicated in order of first mention.
func ExtractFilenames(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range transcriptName.FindAllString(text, -1) {
		name := filepath.Base(m)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// ExtractCallIDs returns every call ID mentioned in text in canonical form,
// de-duplicated in order of first mention.
func ExtractCallIDs(text string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range callIDPattern.FindAllString(text, -1) {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		s := id.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		ids = append(ids, s)
	}
	return ids
}

// callRefs lists the call references in text: file names first, then call IDs.
func callRefs(text string) []string {
	return append(ExtractFilenames(text), ExtractCallIDs(text)...)
}
