package storage

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/example/anime-import/services/importer/internal/anime"
)

// LocalPrefix is the URL path local covers are served under.
const LocalPrefix = "/covers/"

var ErrForeignURL = errors.New("url does not belong to the local cover store")

// LocalUploader keeps covers on a filesystem and serves them itself.
type LocalUploader struct {
	fs      afero.Fs
	dir     string
	baseURL string
}

// NewLocalUploader stores files in dir on fs; URLs are baseURL + LocalPrefix + key.
func NewLocalUploader(fs afero.Fs, dir, baseURL string) (*LocalUploader, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalUploader{fs: fs, dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (u *LocalUploader) Upload(_ context.Context, a *anime.Artifact) (string, error) {
	if a == nil || len(a.Data) == 0 {
		return "", &Error{Op: "upload", Err: errors.New("empty artifact")}
	}
	key := uuid.NewString() + path.Ext(a.Filename)
	if err := afero.WriteFile(u.fs, filepath.Join(u.dir, key), a.Data, 0o644); err != nil {
		return "", &Error{Op: "upload", Err: err}
	}
	return u.baseURL + LocalPrefix + key, nil
}

func (u *LocalUploader) Delete(_ context.Context, rawURL string) error {
	key, err := u.keyOf(rawURL)
	if err != nil {
		return &Error{Op: "delete", Err: err}
	}
	if err := u.fs.Remove(filepath.Join(u.dir, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

func (u *LocalUploader) keyOf(rawURL string) (string, error) {
	p, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(p.Path, LocalPrefix) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(p.Path, LocalPrefix)
	if key == "" || strings.Contains(key, "/") || key == ".." {
		return "", ErrForeignURL
	}
	return key, nil
}

// Handler serves stored covers; mount it at LocalPrefix.
func (u *LocalUploader) Handler() http.Handler {
	return http.StripPrefix(LocalPrefix, http.FileServer(afero.NewHttpFs(u.fs).Dir(u.dir)))
}
