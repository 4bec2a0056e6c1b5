package pkgcheck

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Class is the validation strategy a file's content calls for. It is
// derived from sniffing the file's actual bytes, never from its name.
type Class int

const (
	// ClassText content is normalized and line-diffed against the
	// declaration-variable allow-list.
	ClassText Class = iota
	// ClassImage content is exempt: any difference is accepted.
	ClassImage
	// ClassOpaque content must be byte-identical between both sides.
	ClassOpaque
)

func (c Class) String() string {
	switch c {
	case ClassText:
		return "text"
	case ClassImage:
		return "image"
	case ClassOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// textualMIMEs are the media type prefixes that go through the line diff.
var textualMIMEs = []string{
	"text/",
	"application/x-shellscript",
	"application/x-desktop",
	"application/mbox",
	"application/xml",
	"application/json",
}

// exemptMIMEs are media type prefixes allowed to change without inspection.
var exemptMIMEs = []string{
	"image/",
}

// Classify sniffs content bytes and picks the validation strategy. The
// detected type and all of its ancestors are checked, so a specific script
// type still matches via its text/plain parent.
func Classify(data []byte) Class {
	for mime := mimetype.Detect(data); mime != nil; mime = mime.Parent() {
		if matchesAny(mime.String(), textualMIMEs) {
			return ClassText
		}
		if matchesAny(mime.String(), exemptMIMEs) {
			return ClassImage
		}
	}
	return ClassOpaque
}

func matchesAny(mime string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(mime, p) {
			return true
		}
	}
	return false
}
