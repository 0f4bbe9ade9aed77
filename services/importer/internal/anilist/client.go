package anilist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/example/anime-import/internal/platform/httpclient"
	"github.com/example/anime-import/services/importer/internal/provider"
)

const DefaultEndpoint = "https://graphql.anilist.co"

const mediaQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {
    id
    title { romaji english native }
    synonyms
    description
    format
    status
    episodes
    season
    seasonYear
    startDate { year month day }
    studios { nodes { name } }
    genres
    coverImage { extraLarge large medium }
  }
}`

// Client issues AniList GraphQL queries. Authentication, if any, lives in the
// injected resty client's transport.
type Client struct {
	Endpoint string
	HTTP     *resty.Client
}

func New(hc *resty.Client, endpoint string) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{Endpoint: endpoint, HTTP: hc}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type mediaResponse struct {
	Data struct {
		Media *Media `json:"Media"`
	} `json:"data"`
	Errors GraphQLErrors `json:"errors"`
}

// GetMedia fetches one anime by AniList id. Every failure is a *provider.FetchError.
func (c *Client) GetMedia(ctx context.Context, id int) (*Media, error) {
	fail := func(status int, err error) error {
		return &provider.FetchError{Provider: provider.AniList, ID: id, Status: status, Err: err}
	}
	if id <= 0 {
		return nil, fail(0, fmt.Errorf("id required"))
	}

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(graphQLRequest{Query: mediaQuery, Variables: map[string]any{"id": id}}).
		Post(c.Endpoint)
	if err != nil {
		return nil, fail(0, err)
	}

	b := resp.Body()
	var out mediaResponse
	decodeErr := json.Unmarshal(b, &out)
	// AniList reports missing media as a 404 with a populated errors array.
	if decodeErr == nil && len(out.Errors) > 0 {
		return nil, fail(resp.StatusCode(), out.Errors)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fail(resp.StatusCode(), fmt.Errorf("anilist: body=%q", httpclient.Snippet(b)))
	}
	if decodeErr != nil {
		return nil, fail(resp.StatusCode(), fmt.Errorf("anilist: decode error: %w body=%q", decodeErr, httpclient.Snippet(b)))
	}
	if out.Data.Media == nil {
		return nil, fail(resp.StatusCode(), provider.Missing("data.Media"))
	}
	if err := out.Data.Media.validate(); err != nil {
		return nil, fail(resp.StatusCode(), err)
	}
	return out.Data.Media, nil
}
