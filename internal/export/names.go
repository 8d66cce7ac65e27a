package export

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/starford/quire/internal/models"
)

const ext = ".md"

// illegalChars are stripped from exported filenames.
const illegalChars = `/\?%*|"<>:`

// SanitizeFilename turns a note title into a filesystem-safe base name:
// characters illegal in paths (and control characters) are dropped and spaces
// become underscores. Blank results fall back to models.UntitledLabel.
func SanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case strings.ContainsRune(illegalChars, r), unicode.IsControl(r):
			continue
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name := b.String()
	if strings.Trim(name, "_.") == "" {
		return models.UntitledLabel
	}
	return name
}

// Names hands out unique filenames within one export pass.
// The first request for a base yields "base.md"; later ones get "_2", "_3", …
type Names struct {
	used map[string]struct{}
}

// NewNames returns an empty resolver.
func NewNames() *Names {
	return &Names{used: make(map[string]struct{})}
}

// Reserve marks a filename as taken without handing it out.
func (n *Names) Reserve(filename string) {
	n.used[filename] = struct{}{}
}

// Next returns the first unused filename for base and marks it used.
func (n *Names) Next(base string) string {
	candidate := base + ext
	if _, taken := n.used[candidate]; taken {
		for i := 2; ; i++ {
			candidate = base + "_" + strconv.Itoa(i) + ext
			if _, taken := n.used[candidate]; !taken {
				break
			}
		}
	}
	n.used[candidate] = struct{}{}
	return candidate
}
