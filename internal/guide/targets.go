package guide

import (
	"sort"
	"strings"

	"jtvview/internal/jtv"
)

// Targets turns a list of user-supplied paths into decode targets. Paths
// are sorted; an .ndx path immediately followed by the .pdt of the same
// base is dropped so that each pair is opened once, and repeated paths
// collapse to a single target.
func Targets(paths []string) []string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for i, p := range sorted {
		if p == "" {
			continue
		}
		if isIndex(p) && i+1 < len(sorted) && isData(sorted[i+1]) &&
			jtv.BasePath(p) == jtv.BasePath(sorted[i+1]) {
			continue
		}
		base := jtv.BasePath(p)
		if seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, p)
	}
	return out
}

func isIndex(p string) bool { return strings.HasSuffix(strings.ToLower(p), jtv.IndexExt) }
func isData(p string) bool  { return strings.HasSuffix(strings.ToLower(p), jtv.DataExt) }
