package cli

import (
	"fmt"
	"regexp"
	"time"
)

// formatTimestampRelative renders t relative to now ("5m ago", "yesterday",
// ...), grounded on mcpdiff_utils.py's format_timestamp_relative.
func formatTimestampRelative(t time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}
	now := time.Now()
	diff := now.Sub(t)

	if diff < 0 {
		return t.Local().Format("2006-01-02 15:04:05")
	}

	days := int(diff.Hours() / 24)
	switch {
	case days == 0 && diff < time.Minute:
		return "just now"
	case days == 0 && diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case days == 0:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Local().Format("2006-01-02")
	}
}

// formatTimestampAbsolute renders t in the engine's on-disk ISO-8601 form.
func formatTimestampAbsolute(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// timeFilterPattern matches runs of <number><unit> (s/m/h/d), allowing
// compound filters like "3d1h", grounded on mcpdiff_utils.py's
// parse_time_filter.
var timeFilterPattern = regexp.MustCompile(`(\d+)\s*([smhd])`)

// parseTimeFilter parses a filter like "30s", "5m", "2d", or "3d1h" into a
// duration. An unrecognized string returns an error rather than silently
// matching everything.
func parseTimeFilter(s string) (time.Duration, error) {
	matches := timeFilterPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid time filter %q (expected e.g. 30s, 5m, 2d, 3d1h)", s)
	}

	var total time.Duration
	for _, m := range matches {
		var n int
		if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid time filter %q: %w", s, err)
		}
		switch m[2] {
		case "s":
			total += time.Duration(n) * time.Second
		case "m":
			total += time.Duration(n) * time.Minute
		case "h":
			total += time.Duration(n) * time.Hour
		case "d":
			total += time.Duration(n) * 24 * time.Hour
		}
	}
	return total, nil
}
