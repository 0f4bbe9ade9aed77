package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/anime-import/services/importer/internal/anilist"
	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/imaging"
	"github.com/example/anime-import/services/importer/internal/jikan"
	"github.com/example/anime-import/services/importer/internal/provider"
)

// Preview is the result of a single import. CoverErr is set when the cover
// could not be materialized; Draft.Cover.URL then still holds the remote URL.
type Preview struct {
	Draft    anime.Draft
	CoverErr error
}

// Draft fetches and normalizes metadata for rawURL and materializes its cover.
// Nothing is persisted.
func (p *Pipeline) Draft(ctx context.Context, rawURL string) (*Preview, error) {
	src, err := provider.Detect(rawURL)
	if err != nil {
		return nil, err
	}
	d, err := p.fetchDraft(ctx, src)
	if err != nil {
		return nil, err
	}

	pv := &Preview{Draft: d}
	if err := p.materialize(ctx, &pv.Draft); err != nil {
		p.log.Warn("cover not materialized",
			zap.String("source", src.String()),
			zap.String("cover_url", d.Cover.URL),
			zap.Error(err),
		)
		pv.CoverErr = err
	}
	return pv, nil
}

// Cover resolves and canonicalizes only the cover art for rawURL. Unlike
// Draft it accepts Bangumi URLs.
func (p *Pipeline) Cover(ctx context.Context, rawURL string) (*anime.Artifact, error) {
	src, err := provider.Detect(rawURL)
	if err != nil {
		return nil, err
	}
	coverURL, err := p.coverURL(ctx, src)
	if err != nil {
		return nil, err
	}
	data, err := p.covers.Download(ctx, src, coverURL)
	if err != nil {
		return nil, err
	}
	return imaging.Canonicalize(src, coverURL, data, p.now()), nil
}

func (p *Pipeline) fetchDraft(ctx context.Context, src provider.Source) (anime.Draft, error) {
	switch src.Kind {
	case provider.AniList:
		if err := p.wait(ctx, src.Kind); err != nil {
			return anime.Draft{}, err
		}
		m, err := p.anilist.GetMedia(ctx, src.ID)
		if err != nil {
			return anime.Draft{}, err
		}
		return anilist.ToDraft(m), nil
	case provider.MyAnimeList:
		if err := p.wait(ctx, src.Kind); err != nil {
			return anime.Draft{}, err
		}
		resp, err := p.jikan.GetAnime(ctx, src.ID)
		if err != nil {
			return anime.Draft{}, err
		}
		return jikan.ToDraft(resp), nil
	case provider.Bangumi:
		return anime.Draft{}, fmt.Errorf("%s: %w", src, ErrMetadataUnsupported)
	}
	return anime.Draft{}, provider.ErrInvalidSourceURL
}

func (p *Pipeline) coverURL(ctx context.Context, src provider.Source) (string, error) {
	var u string
	switch src.Kind {
	case provider.Bangumi:
		if err := p.wait(ctx, src.Kind); err != nil {
			return "", err
		}
		return p.bangumi.CoverURL(ctx, src.ID)
	case provider.AniList, provider.MyAnimeList:
		d, err := p.fetchDraft(ctx, src)
		if err != nil {
			return "", err
		}
		u = d.Cover.URL
	}
	if u == "" {
		return "", &provider.FetchError{Provider: src.Kind, ID: src.ID, Err: provider.Missing("cover")}
	}
	return u, nil
}

// materialize downloads and canonicalizes d's remote cover in place.
func (p *Pipeline) materialize(ctx context.Context, d *anime.Draft) error {
	if d.Cover.URL == "" {
		return &provider.FetchError{Provider: d.Source.Kind, ID: d.Source.ID, Err: provider.Missing("cover")}
	}
	data, err := p.covers.Download(ctx, d.Source, d.Cover.URL)
	if err != nil {
		return err
	}
	d.Cover.Artifact = imaging.Canonicalize(d.Source, d.Cover.URL, data, p.now())
	return nil
}
