// Package anime holds the unified draft record every provider adapter maps
// into, and the normalization rules shared between adapters.
package anime

import (
	"github.com/example/anime-import/services/importer/internal/provider"
)

type Type string

const (
	TypeTV      Type = "TV"
	TypeMovie   Type = "Movie"
	TypeOVA     Type = "OVA"
	TypeONA     Type = "ONA"
	TypeSpecial Type = "Special"
)

type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusUpcoming  Status = "upcoming"
)

// Season is lower-case; the zero value means unknown.
type Season string

const (
	SeasonUnknown Season = ""
	SeasonWinter  Season = "winter"
	SeasonSpring  Season = "spring"
	SeasonSummer  Season = "summer"
	SeasonFall    Season = "fall"
)

const (
	// MaxAlternativeNames caps the merged list of title variants and synonyms.
	MaxAlternativeNames = 5
	MaxGenres           = 5
	// DefaultEpisodeCount is used when a provider omits the episode count.
	DefaultEpisodeCount = 12
)

// Draft is an in-memory, not yet persisted anime record. It is built fresh per
// import and only the pipeline mutates it.
type Draft struct {
	Title            string          `json:"title" validate:"required"`
	AlternativeNames []string        `json:"alternativeNames"`
	Description      string          `json:"description"`
	Type             Type            `json:"type" validate:"oneof=TV Movie OVA ONA Special"`
	Status           Status          `json:"status" validate:"oneof=ongoing completed upcoming"`
	EpisodeCount     int             `json:"episodeCount" validate:"gte=0"`
	Studio           string          `json:"studio"`
	Genres           []string        `json:"genres" validate:"max=5"`
	Season           Season          `json:"season" validate:"omitempty,oneof=spring summer fall winter"`
	SeasonYear       int             `json:"seasonYear,omitempty" validate:"omitempty,gte=1000,lte=9999"`
	Cover            Cover           `json:"cover"`
	Source           provider.Source `json:"source"`
}

// Cover is either a remote URL that has not been fetched yet, or a locally
// materialized Artifact (URL then records where it came from).
type Cover struct {
	URL      string    `json:"url,omitempty"`
	Artifact *Artifact `json:"-"`
}

// Materialized reports whether the cover bytes are held locally.
func (c Cover) Materialized() bool {
	return c.Artifact != nil && len(c.Artifact.Data) > 0
}

// Artifact is a cover image ready for upload. The draft owns it until the
// upload service stores a copy; the local bytes stay valid for previews.
type Artifact struct {
	Filename  string `json:"filename"`
	MIMEType  string `json:"mime_type"`
	Data      []byte `json:"-"`
	SourceURL string `json:"source_url"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	// Canonical is true when the bytes were re-encoded as JPEG.
	Canonical bool `json:"canonical"`
	// Fallback explains why the original bytes were kept, if they were.
	Fallback string `json:"fallback,omitempty"`
	BlurHash string `json:"blurhash,omitempty"`
}

// Record is the payload accepted by the anime record service.
type Record struct {
	Title            string   `json:"title"`
	Slug             string   `json:"slug"`
	AlternativeNames []string `json:"alternativeNames"`
	Description      string   `json:"description"`
	CoverURL         string   `json:"coverUrl"`
	Genres           []string `json:"genres,omitempty"`
	Status           Status   `json:"status"`
	Type             Type     `json:"type"`
	EpisodeCount     int      `json:"episodeCount"`
	Studio           string   `json:"studio,omitempty"`
	Season           Season   `json:"season,omitempty"`
	SeasonYear       int      `json:"seasonYear,omitempty"`
}

// Record converts d into a persistence payload.
func (d Draft) Record(slug, coverURL string) Record {
	alt := d.AlternativeNames
	if alt == nil {
		alt = []string{}
	}
	return Record{
		Title:            d.Title,
		Slug:             slug,
		AlternativeNames: alt,
		Description:      d.Description,
		CoverURL:         coverURL,
		Genres:           d.Genres,
		Status:           d.Status,
		Type:             d.Type,
		EpisodeCount:     d.EpisodeCount,
		Studio:           d.Studio,
		Season:           d.Season,
		SeasonYear:       d.SeasonYear,
	}
}
