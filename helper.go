package malw

import (
	"fmt"
	"strings"

	"github.com/hillu/go-yara/v4"
)

// OffsetsFromMatches returns base plus the offset of every match string.
func OffsetsFromMatches(matches []yara.MatchString, base uint64) []uint64 {
	offsets := make([]uint64, len(matches))
	for i, m := range matches {
		offsets[i] = base + m.Offset
	}
	return offsets
}

// FormatSlice formats every element of slice with format. Additional args
// are passed after the element.
func FormatSlice[T any](format string, slice []T, args ...interface{}) []string {
	strs := make([]string, len(slice))
	for i, elem := range slice {
		strs[i] = fmt.Sprintf(format, append([]interface{}{elem}, args...)...)
	}
	return strs
}

// Join concatenates parts like an enumeration in prose: all but the last
// two are glued with defaultGlue, the last two with finalGlue.
func Join(parts []string, defaultGlue, finalGlue string) string {
	if len(parts) < 2 {
		return strings.Join(parts, "")
	}
	last := len(parts) - 1
	return strings.Join(parts[:last], defaultGlue) + finalGlue + parts[last]
}
