package jikan

import (
	"strings"
	"time"

	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/provider"
)

var types = map[string]anime.Type{
	"TV":      anime.TypeTV,
	"Movie":   anime.TypeMovie,
	"OVA":     anime.TypeOVA,
	"ONA":     anime.TypeONA,
	"Special": anime.TypeSpecial,
}

func MapType(t string) anime.Type {
	if v, ok := types[strings.TrimSpace(t)]; ok {
		return v
	}
	return anime.TypeTV
}

func MapStatus(s string) anime.Status {
	switch strings.TrimSpace(s) {
	case "Currently Airing":
		return anime.StatusOngoing
	case "Not yet aired":
		return anime.StatusUpcoming
	default:
		return anime.StatusCompleted
	}
}

func BestTitle(data *AnimeData) string {
	if data == nil {
		return ""
	}
	if t := strings.TrimSpace(data.TitleEnglish); t != "" {
		return t
	}
	if t := strings.TrimSpace(data.Title); t != "" {
		return t
	}
	return strings.TrimSpace(data.TitleJapanese)
}

// ToDraft normalizes a Jikan response. resp must have passed GetAnime's checks.
func ToDraft(resp *AnimeResponse) anime.Draft {
	data := resp.Data

	title := BestTitle(data)
	names := anime.NewNameSet(anime.MaxAlternativeNames)
	// The chosen title is never its own alternative.
	names.Skip(title)
	if t := strings.TrimSpace(data.Title); t != strings.TrimSpace(data.TitleEnglish) {
		names.Add(t)
	}
	names.Add(data.TitleJapanese)
	for _, t := range data.Titles {
		names.Add(t.Title)
	}

	genres := make([]string, 0, len(data.Genres))
	for _, g := range data.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			genres = append(genres, name)
		}
	}

	studio := ""
	if len(data.Studios) > 0 {
		studio = strings.TrimSpace(data.Studios[0].Name)
	}

	season, year := seasonOf(data)

	return anime.Draft{
		Title:            title,
		AlternativeNames: names.Names(),
		Description:      strings.TrimSpace(data.Synopsis),
		Type:             MapType(data.Type),
		Status:           MapStatus(data.Status),
		EpisodeCount:     anime.EpisodesOrDefault(data.Episodes),
		Studio:           studio,
		Genres:           anime.CapGenres(genres),
		Season:           season,
		SeasonYear:       year,
		Cover:            anime.Cover{URL: data.CoverURL()},
		Source:           provider.Source{Kind: provider.MyAnimeList, ID: data.MalID},
	}
}

// seasonOf prefers the explicit season/year and otherwise derives both from
// aired.from.
func seasonOf(data *AnimeData) (anime.Season, int) {
	season := anime.ParseSeason(data.Season)
	if anime.ValidYear(data.Year) {
		return season, data.Year
	}
	from := strings.TrimSpace(data.Aired.From)
	if from == "" {
		return season, 0
	}
	t, err := time.Parse(time.RFC3339, from)
	if err != nil || !anime.ValidYear(t.Year()) {
		return season, 0
	}
	if season == anime.SeasonUnknown {
		season = anime.SeasonForMonth(t.Month())
	}
	return season, t.Year()
}
