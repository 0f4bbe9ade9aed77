package anilist

import (
	"strings"
	"time"

	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/provider"
)

var formats = map[string]anime.Type{
	"TV":      anime.TypeTV,
	"MOVIE":   anime.TypeMovie,
	"OVA":     anime.TypeOVA,
	"ONA":     anime.TypeONA,
	"SPECIAL": anime.TypeSpecial,
}

// MapFormat maps an AniList format code; unknown or empty codes become TV.
func MapFormat(format string) anime.Type {
	if t, ok := formats[strings.ToUpper(strings.TrimSpace(format))]; ok {
		return t
	}
	return anime.TypeTV
}

func MapStatus(status string) anime.Status {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "RELEASING":
		return anime.StatusOngoing
	case "NOT_YET_RELEASED":
		return anime.StatusUpcoming
	default:
		return anime.StatusCompleted
	}
}

// ToDraft normalizes m. The cover is left as a remote URL.
func ToDraft(m *Media) anime.Draft {
	romaji := strings.TrimSpace(m.Title.Romaji)
	english := strings.TrimSpace(m.Title.English)
	native := strings.TrimSpace(m.Title.Native)

	title := english
	if title == "" {
		title = romaji
	}
	if title == "" {
		title = native
	}

	names := anime.NewNameSet(anime.MaxAlternativeNames)
	if english != "" && english != romaji {
		names.Add(english)
	}
	names.Add(native)
	for i, s := range m.Synonyms {
		if i == anime.MaxAlternativeNames {
			break
		}
		names.Add(s)
	}

	studio := ""
	if len(m.Studios.Nodes) > 0 {
		studio = strings.TrimSpace(m.Studios.Nodes[0].Name)
	}

	season := anime.ParseSeason(m.Season)
	year := m.SeasonYear
	if !anime.ValidYear(year) && anime.ValidYear(m.StartDate.Year) {
		year = m.StartDate.Year
		if season == anime.SeasonUnknown && m.StartDate.Month >= 1 && m.StartDate.Month <= 12 {
			season = anime.SeasonForMonth(time.Month(m.StartDate.Month))
		}
	}
	if !anime.ValidYear(year) {
		year = 0
	}

	return anime.Draft{
		Title:            title,
		AlternativeNames: names.Names(),
		Description:      anime.StripHTML(m.Description),
		Type:             MapFormat(m.Format),
		Status:           MapStatus(m.Status),
		EpisodeCount:     anime.EpisodesOrDefault(m.Episodes),
		Studio:           studio,
		Genres:           anime.CapGenres(m.Genres),
		Season:           season,
		SeasonYear:       year,
		Cover:            anime.Cover{URL: m.CoverURL()},
		Source:           provider.Source{Kind: provider.AniList, ID: m.ID},
	}
}
