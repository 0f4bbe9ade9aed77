package jikan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/example/anime-import/internal/platform/httpclient"
	"github.com/example/anime-import/services/importer/internal/provider"
)

const DefaultBaseURL = "https://api.jikan.moe/v4"

type Client struct {
	BaseURL string
	HTTP    *resty.Client
}

func New(hc *resty.Client, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

type Named struct {
	Name string `json:"name"`
}

// TitleEntry is one of the typed titles Jikan lists (Default, Synonym, ...).
type TitleEntry struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

type ImageSet struct {
	ImageURL      string `json:"image_url"`
	LargeImageURL string `json:"large_image_url"`
}

// AnimeData is the data block of GET /anime/{id}.
type AnimeData struct {
	MalID         int          `json:"mal_id"`
	Title         string       `json:"title"`
	TitleEnglish  string       `json:"title_english"`
	TitleJapanese string       `json:"title_japanese"`
	Titles        []TitleEntry `json:"titles"`
	Synopsis      string       `json:"synopsis"`
	Type          string       `json:"type"`
	Status        string       `json:"status"`
	Episodes      int          `json:"episodes"`
	Season        string       `json:"season"`
	Year          int          `json:"year"`
	Studios       []Named      `json:"studios"`
	Genres        []Named      `json:"genres"`
	Aired         struct {
		From string `json:"from"`
	} `json:"aired"`
	Images struct {
		JPG  ImageSet `json:"jpg"`
		WebP ImageSet `json:"webp"`
	} `json:"images"`
}

type AnimeResponse struct {
	Data *AnimeData `json:"data"`
}

func (a *AnimeData) validate() error {
	if a.MalID <= 0 {
		return provider.Missing("data.mal_id")
	}
	if strings.TrimSpace(a.Title) == "" {
		return provider.Missing("data.title")
	}
	return nil
}

// CoverURL prefers the large JPEG, then the regular JPEG, then WebP.
func (a *AnimeData) CoverURL() string {
	for _, u := range []string{a.Images.JPG.LargeImageURL, a.Images.JPG.ImageURL, a.Images.WebP.LargeImageURL, a.Images.WebP.ImageURL} {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

func (c *Client) GetAnime(ctx context.Context, malID int) (*AnimeResponse, error) {
	fail := func(status int, err error) error {
		return &provider.FetchError{Provider: provider.MyAnimeList, ID: malID, Status: status, Err: err}
	}
	if malID <= 0 {
		return nil, fail(0, fmt.Errorf("malID required"))
	}

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(c.BaseURL + "/anime/" + strconv.Itoa(malID))
	if err != nil {
		return nil, fail(0, err)
	}

	b := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fail(resp.StatusCode(), fmt.Errorf("jikan: body=%q", httpclient.Snippet(b)))
	}
	var out AnimeResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fail(resp.StatusCode(), fmt.Errorf("jikan: decode error: %w body=%q", err, httpclient.Snippet(b)))
	}
	if out.Data == nil {
		return nil, fail(resp.StatusCode(), provider.Missing("data"))
	}
	if err := out.Data.validate(); err != nil {
		return nil, fail(resp.StatusCode(), err)
	}
	return &out, nil
}
