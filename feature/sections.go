package feature

import "strings"

// ExtractSection pulls a named section out of a markdown-ish design
// document.
//
// Scanning is a two-state walk over lines: outside the section until a
// line containing the heading text (case-sensitive substring match), then
// inside, collecting lines until the next heading line (prefix "#").
// A missing heading yields the empty string; partial structure is
// accepted as-is.
func ExtractSection(content, heading string) string {
	var (
		inSection bool
		collected []string
	)

	for _, line := range strings.Split(content, "\n") {
		if !inSection {
			if strings.Contains(line, heading) {
				inSection = true
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			break
		}
		collected = append(collected, line)
	}

	return strings.TrimSpace(strings.Join(collected, "\n"))
}
