package diffengine_test

import (
	"strings"
	"testing"

	"github.com/edithist/edithist/internal/diffengine"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnifiedDiffHeaders(t *testing.T) {
	diff := diffengine.GenerateUnifiedDiff("hello\n", "world\n", "a.txt")
	require.True(t, strings.HasPrefix(diff, "--- a/a.txt\n+++ b/a.txt\n"))
	require.Contains(t, diff, "@@")
	require.Contains(t, diff, "-hello\n")
	require.Contains(t, diff, "+world\n")
}

func TestGenerateUnifiedDiffNoChangesIsEmptyBody(t *testing.T) {
	diff := diffengine.GenerateUnifiedDiff("same\n", "same\n", "a.txt")
	require.NotContains(t, diff, "@@")
}

func TestGenerateUnifiedDiffCreateFromEmpty(t *testing.T) {
	diff := diffengine.GenerateUnifiedDiff("", "hello\nworld\n", "new.txt")
	require.Contains(t, diff, "+hello\n")
	require.Contains(t, diff, "+world\n")
}

func TestGenerateUnifiedDiffPreservesContextLines(t *testing.T) {
	before := "l1\nl2\nl3\nl4\nl5\nl6\nl7\n"
	after := "l1\nl2\nl3\nCHANGED\nl5\nl6\nl7\n"
	diff := diffengine.GenerateUnifiedDiff(before, after, "a.txt")
	require.Contains(t, diff, " l2\n")
	require.Contains(t, diff, "-l4\n")
	require.Contains(t, diff, "+CHANGED\n")
	require.Contains(t, diff, " l6\n")
}
