package git

import (
	"regexp"
	"sort"
)

// taskPatterns are applied in order and their matches unioned. Each captures
// the identifier in group 1.
var taskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:task|fix|close|resolve|ref|refs|references)\s*[#:]?\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`\b(\d+\.\d+)\b`),
	regexp.MustCompile(`(?i)\btasks?\s+(\d+(?:\.\d+)?)`),
}

// ExtractTaskReferences returns the sorted set of task identifiers mentioned
// in a commit message, e.g. "Fix task 27.6 and refs #14" yields [14 27.6].
func ExtractTaskReferences(message string) []string {
	seen := make(map[string]struct{})
	for _, p := range taskPatterns {
		for _, m := range p.FindAllStringSubmatch(message, -1) {
			seen[m[1]] = struct{}{}
		}
	}
	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
