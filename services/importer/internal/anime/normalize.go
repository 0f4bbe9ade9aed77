package anime

import (
	"regexp"
	"strings"
	"time"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes tags in a single pass. Entities are left as they are.
func StripHTML(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

// NameSet accumulates alternative names in insertion order, skipping blanks
// and exact duplicates, up to a fixed cap.
type NameSet struct {
	names []string
	seen  map[string]struct{}
	limit int
}

func NewNameSet(limit int) *NameSet {
	return &NameSet{seen: make(map[string]struct{}), limit: limit}
}

// Add appends name unless it is blank, already present or the set is full.
// It reports whether the name was added.
func (s *NameSet) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(s.names) >= s.limit {
		return false
	}
	if _, dup := s.seen[name]; dup {
		return false
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

// Skip marks name as already present without adding it, so a later Add of
// the same name is ignored.
func (s *NameSet) Skip(name string) {
	if name = strings.TrimSpace(name); name != "" {
		s.seen[name] = struct{}{}
	}
}

// Names returns the accumulated list; never nil.
func (s *NameSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// SeasonForMonth buckets a month: Jan–Mar winter, Apr–Jun spring, Jul–Sep summer, Oct–Dec fall.
func SeasonForMonth(m time.Month) Season {
	switch {
	case m >= time.January && m <= time.March:
		return SeasonWinter
	case m >= time.April && m <= time.June:
		return SeasonSpring
	case m >= time.July && m <= time.September:
		return SeasonSummer
	case m >= time.October && m <= time.December:
		return SeasonFall
	}
	return SeasonUnknown
}

// ParseSeason lower-cases a provider season; unknown values map to SeasonUnknown.
func ParseSeason(s string) Season {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case SeasonWinter:
		return SeasonWinter
	case SeasonSpring:
		return SeasonSpring
	case SeasonSummer:
		return SeasonSummer
	case SeasonFall, "autumn":
		return SeasonFall
	}
	return SeasonUnknown
}

// EpisodesOrDefault substitutes DefaultEpisodeCount for a missing count.
func EpisodesOrDefault(n int) int {
	if n <= 0 {
		return DefaultEpisodeCount
	}
	return n
}

// CapGenres trims names, drops blanks and keeps at most MaxGenres.
func CapGenres(in []string) []string {
	out := make([]string, 0, min(len(in), MaxGenres))
	for _, g := range in {
		if len(out) == MaxGenres {
			break
		}
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// ValidYear reports whether y is a 4-digit year.
func ValidYear(y int) bool {
	return y >= 1000 && y <= 9999
}
