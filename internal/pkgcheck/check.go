// Package pkgcheck validates a new upstream version of a package definition
// against the custom-maintained one. Upstream content is untrusted (anyone
// can publish a PKGBUILD containing arbitrary shell), so every changed byte
// is classified and only changes to an allow-listed set of declaration
// variables are accepted; everything else rejects the update.
package pkgcheck

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aurvet/aurvet/internal/walker"
)

// allowedVariables is the closed set of declaration variables whose values
// may change without human review. This list is the security policy of the
// whole system: keep it data, review it whenever the PKGBUILD format gains
// new fields.
var allowedVariables = map[string]bool{
	"license":            true,
	"pkgver":             true,
	"pkgrel":             true,
	"pkgdesc":            true,
	"arch":               true,
	"sha256sums":         true,
	"sha512sums":         true,
	"md5sums":            true,
	"optdepends":         true,
	"validpgpkeys":       true,
	"conflicts":          true,
	"sha256sums_armv7h":  true,
	"sha256sums_aarch64": true,
	"sha256sums_x86_64":  true,
	"depends":            true,
	"_pkgname":           true,
}

// customVariablePrefix marks maintainer-defined variables, which are always
// allowed to change.
const customVariablePrefix = "_"

// Verdict is the outcome of validating one file or one package tree pair.
type Verdict struct {
	OK     bool
	Reason string
}

func accepted() Verdict {
	return Verdict{OK: true}
}

func rejected(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Check validates and applies one package update. Left is the clone of the
// custom-maintained tree, right the clone of the untrusted upstream tree.
type Check struct {
	left  string
	right string
}

// New creates a check over a pair of cloned package trees.
func New(left, right string) *Check {
	return &Check{left: left, right: right}
}

// Validate classifies every paired file and judges its changes. The package
// verdict is rejected as soon as any file is rejected; a pair of trees with
// zero added lines anywhere is rejected as a no-op.
func (c *Check) Validate() (Verdict, error) {
	leftFiles, rightFiles, err := c.pairFiles()
	if err != nil {
		return Verdict{}, err
	}

	hadAdditions := false

	n := min(len(leftFiles), len(rightFiles))
	for i := 0; i < n; i++ {
		leftPath := filepath.Join(c.left, leftFiles[i].RelPath)
		rightPath := filepath.Join(c.right, rightFiles[i].RelPath)

		rightData, err := os.ReadFile(rightPath)
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to read upstream file: %w", err)
		}

		switch class := Classify(rightData); class {
		case ClassText:
			leftData, err := os.ReadFile(leftPath)
			if err != nil {
				return Verdict{}, fmt.Errorf("failed to read local file: %w", err)
			}

			verdict, added := checkTextChanges(leftFiles[i].Name, string(leftData), string(rightData))
			if !verdict.OK {
				return verdict, nil
			}
			if added {
				hadAdditions = true
			}

		case ClassImage:
			// Image-like content is exempt from inspection.

		case ClassOpaque:
			same, err := sameContent(leftPath, rightPath)
			if err != nil {
				return Verdict{}, err
			}
			if !same {
				return rejected("binary file %s changed", rightFiles[i].RelPath), nil
			}
		}
	}

	if !hadAdditions {
		return rejected("no content changes detected"), nil
	}

	return accepted(), nil
}

// checkTextChanges diffs the normalized text of one file pair and applies
// the allow-list policy to every added line. The second result reports
// whether the upstream side added any lines at all.
func checkTextChanges(name, left, right string) (Verdict, bool) {
	changes := diffLines(normalizeLines(left), normalizeLines(right))

	added := false
	for _, change := range changes {
		if change.Kind != Added {
			continue
		}
		added = true

		// A line without an assignment is an injected statement,
		// never a declaration change.
		variable, _, found := strings.Cut(change.Text, "=")
		if !found {
			return rejected("%s: added line %q is not a variable assignment", name, change.Text), false
		}

		// The token is judged verbatim. Shell treats "pkgver =..." as a
		// command invocation, not an assignment, so whitespace around the
		// variable name must fail the lookup rather than be cleaned up.
		if !allowedVariables[variable] && !strings.HasPrefix(variable, customVariablePrefix) {
			return rejected("%s: variable %q is not allowed to change", name, variable), false
		}
	}

	return accepted(), added
}

// Apply copies every upstream file over its local counterpart. Only valid
// after Validate accepted the update.
func (c *Check) Apply() error {
	leftFiles, rightFiles, err := c.pairFiles()
	if err != nil {
		return err
	}

	n := min(len(leftFiles), len(rightFiles))
	for i := 0; i < n; i++ {
		src := filepath.Join(c.right, rightFiles[i].RelPath)
		dst := filepath.Join(c.left, leftFiles[i].RelPath)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("failed to apply %s: %w", rightFiles[i].RelPath, err)
		}
	}

	return nil
}

// pairFiles walks both trees in the same deterministic order and returns
// the file entries to pair index-by-index.
func (c *Check) pairFiles() (left, right []walker.Entry, err error) {
	left, err = walker.Files(c.left)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk local tree: %w", err)
	}
	right, err = walker.Files(c.right)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk upstream tree: %w", err)
	}
	return left, right, nil
}

// sameContent reports whether two files have identical content, compared by
// SHA256 digest.
func sameContent(a, b string) (bool, error) {
	ha, err := fileHash(a)
	if err != nil {
		return false, err
	}
	hb, err := fileHash(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

// fileHash computes the SHA256 hash of a file
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies a file from src to dst with atomic write
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	// Create temp file in destination directory
	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".aurvet-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	// Copy content
	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	// Preserve source permissions
	srcInfo, err := srcFile.Stat()
	if err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(srcInfo.Mode()); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, dst)
}
