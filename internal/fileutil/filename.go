package fileutil

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// maxFileNameLength bounds generated filenames so collection subdirectories
// plus long titles stay within filesystem path limits.
const maxFileNameLength = 180

// truncationReserve is taken off the stem when shortening: the 8-character
// random suffix, its separator, and one spare.
const truncationReserve = 10

var illegalChars = strings.NewReplacer(
	"<", "",
	">", "",
	":", "",
	"\"", "",
	"/", "",
	"\\", "",
	"|", "",
	"?", "",
	"*", "",
)

// SafeFileName strips the characters no common filesystem accepts and
// normalizes the text to NFC so visually identical titles map to the same
// file. Emoji and other non-ASCII text survive untouched.
func SafeFileName(name string) string {
	name = norm.NFC.String(name)
	return strings.TrimSpace(illegalChars.Replace(name))
}

// ShortenFileName caps name at 180 characters. Over-long names keep their
// extension, drop the tail of the stem, and gain a random 8-character
// suffix so two truncations of the same title stay distinct.
func ShortenFileName(name string) string {
	if len([]rune(name)) <= maxFileNameLength {
		return name
	}
	ext := filepath.Ext(name)
	stem := []rune(strings.TrimSuffix(name, ext))
	keep := maxFileNameLength - len([]rune(ext)) - truncationReserve
	if keep < 0 {
		keep = 0
	}
	if keep > len(stem) {
		keep = len(stem)
	}
	return string(stem[:keep]) + "_" + randomSuffix() + ext
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
