// Package checksum derives version tags for notes, used as HTTP ETags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/starford/quire/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Note returns a digest over every mutable field of n. Two notes with the same
// id share a checksum iff they are Equal.
func Note(n models.Note) string {
	h := sha256.New()
	for _, part := range []string{
		n.ID,
		n.Title,
		n.Content,
		n.Date.UTC().Format("2006-01-02T15:04:05.999999999Z"),
		strconv.FormatBool(n.IsPinned),
	} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
