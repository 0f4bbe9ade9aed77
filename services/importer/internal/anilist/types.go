package anilist

import (
	"strings"

	"github.com/example/anime-import/services/importer/internal/provider"
)

type Title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type FuzzyDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type CoverImage struct {
	ExtraLarge string `json:"extraLarge"`
	Large      string `json:"large"`
	Medium     string `json:"medium"`
}

type Media struct {
	ID          int       `json:"id"`
	Title       Title     `json:"title"`
	Synonyms    []string  `json:"synonyms"`
	Description string    `json:"description"`
	Format      string    `json:"format"`
	Status      string    `json:"status"`
	Episodes    int       `json:"episodes"`
	Season      string    `json:"season"`
	SeasonYear  int       `json:"seasonYear"`
	StartDate   FuzzyDate `json:"startDate"`
	Studios     struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
	Genres     []string   `json:"genres"`
	CoverImage CoverImage `json:"coverImage"`
}

func (m *Media) validate() error {
	if strings.TrimSpace(m.Title.Romaji) == "" && strings.TrimSpace(m.Title.English) == "" && strings.TrimSpace(m.Title.Native) == "" {
		return provider.Missing("data.Media.title")
	}
	return nil
}

// CoverURL returns the first non-empty tier: extraLarge, large, medium.
func (m *Media) CoverURL() string {
	for _, u := range []string{m.CoverImage.ExtraLarge, m.CoverImage.Large, m.CoverImage.Medium} {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

type GraphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// GraphQLErrors is the errors array AniList returns alongside (or instead of) data.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return "anilist graphql: " + strings.Join(msgs, "; ")
}
