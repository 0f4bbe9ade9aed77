package records

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/example/anime-import/internal/platform/httpclient"
	"github.com/example/anime-import/services/importer/internal/anime"
)

// HTTPStore posts records to {BaseURL}/anime.
type HTTPStore struct {
	BaseURL string
	HTTP    *resty.Client
}

func NewHTTPStore(hc *resty.Client, baseURL string) *HTTPStore {
	return &HTTPStore{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

type createResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    struct {
		Anime struct {
			ID    string `json:"id"`
			OID   string `json:"_id"`
			Title string `json:"title"`
		} `json:"anime"`
	} `json:"data"`
}

func (s *HTTPStore) Create(ctx context.Context, rec anime.Record) (string, error) {
	resp, err := s.HTTP.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(rec).
		Post(s.BaseURL + "/anime")
	if err != nil {
		return "", &PersistenceError{Err: err}
	}

	var out createResponse
	decodeErr := json.Unmarshal(resp.Body(), &out)

	if !resp.IsSuccess() {
		pe := &PersistenceError{Status: resp.StatusCode(), Message: out.Message}
		if pe.Message == "" {
			pe.Message = httpclient.Snippet(resp.Body())
		}
		if out.Error != "" {
			pe.Err = errors.New(out.Error)
		}
		if resp.StatusCode() == http.StatusConflict {
			pe.Err = ErrDuplicate
		}
		return "", pe
	}
	if decodeErr != nil {
		return "", &PersistenceError{Status: resp.StatusCode(), Message: "undecodable response", Err: decodeErr}
	}
	id := out.Data.Anime.ID
	if id == "" {
		id = out.Data.Anime.OID
	}
	return id, nil
}
