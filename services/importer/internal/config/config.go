package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	RecordsHTTP     = "http"
	RecordsPostgres = "postgres"
	UploadHTTP      = "http"
	UploadLocal     = "local"
)

type ProviderConfig struct {
	AniListURL       string
	AniListToken     string
	JikanBaseURL     string
	BangumiBaseURL   string
	BangumiUserAgent string
	// Requests per second per provider; 0 disables limiting.
	AniListRPS float64
	JikanRPS   float64
	BangumiRPS float64
}

type ProxyConfig struct {
	// URL is the image proxy used for Bangumi covers.
	URL          string
	AllowedHosts []string
	RPS          float64
	Burst        int
}

type Config struct {
	Providers ProviderConfig
	Proxy     ProxyConfig

	HTTPTimeout     time.Duration
	HTTPMaxRetries  int
	BulkConcurrency int

	RecordsBackend string
	BackendURL     string
	BackendToken   string
	DatabaseURL    string

	UploadBackend string
	LocalCoverDir string
	PublicBaseURL string

	NATSURL       string
	RevalidateURL string
	AsyncBulk     bool

	JWTSecret   string
	ImportRoles []string
	WSOrigins   []string
	CORSOrigin  string
}

func Load() (Config, error) {
	cfg := Config{
		Providers: ProviderConfig{
			AniListURL:       envDefault("ANILIST_GRAPHQL_URL", "https://graphql.anilist.co"),
			AniListToken:     strings.TrimSpace(os.Getenv("ANILIST_TOKEN")),
			JikanBaseURL:     envDefault("JIKAN_BASE_URL", "https://api.jikan.moe/v4"),
			BangumiBaseURL:   envDefault("BANGUMI_BASE_URL", "https://api.bgm.tv"),
			BangumiUserAgent: strings.TrimSpace(os.Getenv("BANGUMI_USER_AGENT")),
			AniListRPS:       parseFloatWithDefault(os.Getenv("ANILIST_RPS"), 1.5),
			JikanRPS:         parseFloatWithDefault(os.Getenv("JIKAN_RPS"), 1),
			BangumiRPS:       parseFloatWithDefault(os.Getenv("BANGUMI_RPS"), 2),
		},
		Proxy: ProxyConfig{
			URL:          strings.TrimSpace(os.Getenv("PROXY_IMAGE_URL")),
			AllowedHosts: splitList(envDefault("PROXY_ALLOWED_HOSTS", "lain.bgm.tv,bgm.tv")),
			RPS:          parseFloatWithDefault(os.Getenv("PROXY_RPS"), 5),
			Burst:        parseIntWithDefault(os.Getenv("PROXY_BURST"), 10),
		},
		HTTPTimeout:     parseDurationWithDefault(os.Getenv("HTTP_TIMEOUT"), 15*time.Second),
		HTTPMaxRetries:  parseIntWithDefault(os.Getenv("HTTP_MAX_RETRIES"), 2),
		BulkConcurrency: parseIntWithDefault(os.Getenv("BULK_CONCURRENCY"), 3),

		RecordsBackend: strings.ToLower(envDefault("RECORDS_BACKEND", RecordsHTTP)),
		BackendURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("RECORDS_BASE_URL")), "/"),
		BackendToken:   strings.TrimSpace(os.Getenv("BACKEND_TOKEN")),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),

		UploadBackend: strings.ToLower(envDefault("UPLOAD_BACKEND", UploadHTTP)),
		LocalCoverDir: envDefault("LOCAL_COVER_DIR", "./data/covers"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/"),

		NATSURL:       strings.TrimSpace(os.Getenv("NATS_URL")),
		RevalidateURL: strings.TrimSpace(os.Getenv("REVALIDATE_URL")),
		AsyncBulk:     parseBool(os.Getenv("ENABLE_ASYNC_BULK")),

		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
		ImportRoles: splitList(envDefault("IMPORT_ROLES", "admin")),
		WSOrigins:   splitList(os.Getenv("WS_ALLOWED_ORIGINS")),
		CORSOrigin:  strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	switch cfg.RecordsBackend {
	case RecordsHTTP:
		if cfg.BackendURL == "" {
			return Config{}, errors.New("RECORDS_BASE_URL is required")
		}
	case RecordsPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required")
		}
	default:
		return Config{}, errors.New("RECORDS_BACKEND must be http or postgres")
	}
	switch cfg.UploadBackend {
	case UploadHTTP:
		if cfg.BackendURL == "" {
			return Config{}, errors.New("RECORDS_BASE_URL is required for UPLOAD_BACKEND=http")
		}
	case UploadLocal:
	default:
		return Config{}, errors.New("UPLOAD_BACKEND must be http or local")
	}
	if cfg.AsyncBulk && cfg.NATSURL == "" {
		return Config{}, errors.New("NATS_URL is required when ENABLE_ASYNC_BULK is set")
	}
	return cfg, nil
}

// ProxyEnabled reports whether /proxy-image is served.
func (c Config) ProxyEnabled() bool {
	return len(c.Proxy.AllowedHosts) > 0
}

func envDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationWithDefault(v string, def time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseIntWithDefault(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func parseFloatWithDefault(v string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}
