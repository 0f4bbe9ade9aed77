package anime

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/example/anime-import/services/importer/internal/provider"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	nonWord    = regexp.MustCompile(`[^a-z0-9_-]+`)
)

// BaseSlug lower-cases title, joins words with hyphens and strips every
// non-word character. Accented letters are folded to ASCII first.
func BaseSlug(title string) string {
	s := norm.NFKD.String(title)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespace.ReplaceAllString(s, "-")
	s = nonWord.ReplaceAllString(s, "")
	return strings.Trim(s, "-")
}

// Slug returns a globally unique slug: BaseSlug plus a millisecond suffix.
// Titles that fold to nothing (e.g. pure kana) fall back to the provider id.
func Slug(title string, src provider.Source, now time.Time) string {
	base := BaseSlug(title)
	if base == "" {
		base = fmt.Sprintf("%s-%d", src.Kind, src.ID)
	}
	return fmt.Sprintf("%s-%d", base, now.UnixMilli())
}
