// Package provider identifies which third-party metadata source a URL points
// at and defines the errors shared by the provider adapters.
package provider

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind names a supported metadata provider.
type Kind string

const (
	AniList     Kind = "anilist"
	MyAnimeList Kind = "mal"
	Bangumi     Kind = "bangumi"
)

func (k Kind) String() string { return string(k) }

// ErrInvalidSourceURL is returned when a URL matches none of the provider patterns.
var ErrInvalidSourceURL = errors.New("invalid source url: supported anilist.co/anime/<id>, myanimelist.net/anime/<id>, bangumi.tv/subject/<id>")

// Source is the detected provider plus its numeric id. Exactly one Kind is set.
type Source struct {
	Kind Kind `json:"provider"`
	ID   int  `json:"id"`
}

func (s Source) String() string {
	return fmt.Sprintf("%s:%d", s.Kind, s.ID)
}

type pattern struct {
	kind Kind
	re   *regexp.Regexp
}

// Order matters: first match wins.
var patterns = []pattern{
	{AniList, regexp.MustCompile(`anilist\.co/anime/(\d+)`)},
	{MyAnimeList, regexp.MustCompile(`myanimelist\.net/anime/(\d+)`)},
	{Bangumi, regexp.MustCompile(`bangumi\.tv/subject/(\d+)`)},
}

// Detect matches raw against the provider patterns without touching the network.
func Detect(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil || id <= 0 {
			return Source{}, fmt.Errorf("%w: bad id %q", ErrInvalidSourceURL, m[1])
		}
		return Source{Kind: p.kind, ID: id}, nil
	}
	return Source{}, ErrInvalidSourceURL
}

// SplitURLs turns free text into one URL per non-blank line, preserving order.
func SplitURLs(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
