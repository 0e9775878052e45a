package leak

import "github.com/sergi/go-diff/diffmatchpatch"

// DiffReports renders a human-readable diff between two leak snapshots
// (e.g. before and after a suspect operation), highlighting newly
// surviving objects.
func DiffReports(before, after []Entry) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(Format(before), Format(after), true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}
