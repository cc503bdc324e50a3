package review

import "github.com/edithist/edithist/internal/diffengine"

// diffForDisplay renders a unified diff between the journal's expected
// content and the file's actual on-disk content, for showing the user what
// an out-of-band edit changed.
func diffForDisplay(expected, actual, displayName string) string {
	return diffengine.GenerateUnifiedDiff(expected, actual, displayName)
}
