// Package dirdiff detects structural drift between two package trees. It
// stops at the first point of divergence and reports which side introduced
// unmatched structure, because the update policy only needs one bit beyond
// a boolean: extra files on the upstream side may be legitimate new content,
// extra files on the local side mean the custom tree has drifted.
package dirdiff

import (
	"fmt"

	"github.com/aurvet/aurvet/internal/walker"
)

// Divergence identifies which of two compared trees contains a structural
// addition, or that the trees are not even aligned.
type Divergence int

const (
	// None means the trees are structurally identical.
	None Divergence = iota
	// Left means the left tree has entries the right tree lacks.
	Left
	// Right means the right tree has entries the left tree lacks.
	Right
	// Unknown means a paired entry differs in depth, kind or name, so the
	// divergence cannot be attributed to one side.
	Unknown
)

func (d Divergence) String() string {
	switch d {
	case None:
		return "none"
	case Left:
		return "left"
	case Right:
		return "right"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("divergence(%d)", int(d))
	}
}

// Compare walks both roots in lock-step and returns the first structural
// divergence. Paired entries must agree on depth, kind and name; the first
// mismatch yields Unknown. If one walk has leftover entries after the other
// is exhausted, the side with the surplus is reported.
func Compare(leftRoot, rightRoot string) (Divergence, error) {
	left, err := walker.Walk(leftRoot)
	if err != nil {
		return Unknown, fmt.Errorf("failed to walk left tree: %w", err)
	}
	right, err := walker.Walk(rightRoot)
	if err != nil {
		return Unknown, fmt.Errorf("failed to walk right tree: %w", err)
	}

	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		a, b := left[i], right[i]
		if a.Depth != b.Depth || a.IsDir != b.IsDir || a.Name != b.Name {
			return Unknown, nil
		}
	}

	switch {
	case len(left) > n:
		return Left, nil
	case len(right) > n:
		return Right, nil
	default:
		return None, nil
	}
}
