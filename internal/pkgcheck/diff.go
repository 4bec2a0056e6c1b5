package pkgcheck

import "github.com/pmezard/go-difflib/difflib"

// ChangeKind tags one unit of a line-level diff result.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Added
	Removed
)

// LineChange is one line of a diff between the normalized local and remote
// text of a file pair.
type LineChange struct {
	Kind ChangeKind
	Text string
}

// diffLines computes a line diff between the normalized local (left) and
// remote (right) text. Added lines are the remote side's insertions, the
// only changes the allow-list policy ever has to judge.
func diffLines(left, right []string) []LineChange {
	matcher := difflib.NewMatcher(left, right)

	var changes []LineChange
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, line := range left[op.I1:op.I2] {
				changes = append(changes, LineChange{Kind: Unchanged, Text: line})
			}
		case 'd':
			for _, line := range left[op.I1:op.I2] {
				changes = append(changes, LineChange{Kind: Removed, Text: line})
			}
		case 'i':
			for _, line := range right[op.J1:op.J2] {
				changes = append(changes, LineChange{Kind: Added, Text: line})
			}
		case 'r':
			for _, line := range left[op.I1:op.I2] {
				changes = append(changes, LineChange{Kind: Removed, Text: line})
			}
			for _, line := range right[op.J1:op.J2] {
				changes = append(changes, LineChange{Kind: Added, Text: line})
			}
		}
	}

	return changes
}
