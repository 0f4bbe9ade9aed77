package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/example/anime-import/internal/platform/logging"
	"github.com/example/anime-import/services/importer/internal/app"
	"github.com/example/anime-import/services/importer/internal/config"
)

var (
	v   = viper.New()
	log *zap.Logger
	imp *app.App
)

// flag name -> env key
var envKeys = map[string]string{
	"log-level":       "LOG_LEVEL",
	"anilist-url":     "ANILIST_GRAPHQL_URL",
	"anilist-token":   "ANILIST_TOKEN",
	"jikan-url":       "JIKAN_BASE_URL",
	"bangumi-url":     "BANGUMI_BASE_URL",
	"proxy-url":       "PROXY_IMAGE_URL",
	"records-backend": "RECORDS_BACKEND",
	"records-url":     "RECORDS_BASE_URL",
	"backend-token":   "BACKEND_TOKEN",
	"database-url":    "DATABASE_URL",
	"upload-backend":  "UPLOAD_BACKEND",
	"cover-dir":       "LOCAL_COVER_DIR",
	"public-url":      "PUBLIC_BASE_URL",
	"revalidate-url":  "REVALIDATE_URL",
	"concurrency":     "BULK_CONCURRENCY",
	"timeout":         "HTTP_TIMEOUT",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "importctl",
	Short: "Import anime metadata and covers from AniList, MyAnimeList and Bangumi",
	Long: `importctl runs the import pipeline in-process.

Flags can also be set through the same environment variables the importer
service reads, e.g. RECORDS_BASE_URL or PROXY_IMAGE_URL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		log, err = logging.New(v.GetString("log-level"))
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		imp, err = app.New(ctx, loadConfig(), log)
		if err != nil {
			return fmt.Errorf("init pipeline: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if imp != nil {
			imp.Close()
		}
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("log-level", "warn", "log level (debug, info, warn, error)")
	f.String("anilist-url", "https://graphql.anilist.co", "AniList GraphQL endpoint")
	f.String("anilist-token", "", "optional AniList bearer token")
	f.String("jikan-url", "https://api.jikan.moe/v4", "Jikan API base URL")
	f.String("bangumi-url", "https://api.bgm.tv", "Bangumi API base URL")
	f.String("proxy-url", "", "image proxy used for Bangumi covers")
	f.String("records-backend", config.RecordsHTTP, "record store: http or postgres")
	f.String("records-url", "", "record service base URL")
	f.String("backend-token", "", "bearer token for the record and upload service")
	f.String("database-url", "", "Postgres DSN for records-backend=postgres")
	f.String("upload-backend", config.UploadLocal, "cover store: http or local")
	f.String("cover-dir", "./covers", "directory for upload-backend=local")
	f.String("public-url", "", "URL prefix for locally stored covers")
	f.String("revalidate-url", "", "cache revalidation webhook")
	f.Int("concurrency", 3, "bulk items in flight")
	f.Duration("timeout", 15*time.Second, "per request timeout")

	for name, env := range envKeys {
		_ = v.BindPFlag(name, f.Lookup(name))
		_ = v.BindEnv(name, env)
	}

	rootCmd.AddCommand(draftCmd, coverCmd, bulkCmd)
}

func loadConfig() config.Config {
	return config.Config{
		Providers: config.ProviderConfig{
			AniListURL:     v.GetString("anilist-url"),
			AniListToken:   v.GetString("anilist-token"),
			JikanBaseURL:   v.GetString("jikan-url"),
			BangumiBaseURL: v.GetString("bangumi-url"),
			AniListRPS:     1.5,
			JikanRPS:       1,
			BangumiRPS:     2,
		},
		Proxy:           config.ProxyConfig{URL: v.GetString("proxy-url")},
		HTTPTimeout:     v.GetDuration("timeout"),
		HTTPMaxRetries:  2,
		BulkConcurrency: v.GetInt("concurrency"),
		RecordsBackend:  strings.ToLower(v.GetString("records-backend")),
		BackendURL:      strings.TrimRight(v.GetString("records-url"), "/"),
		BackendToken:    v.GetString("backend-token"),
		DatabaseURL:     v.GetString("database-url"),
		UploadBackend:   strings.ToLower(v.GetString("upload-backend")),
		LocalCoverDir:   v.GetString("cover-dir"),
		PublicBaseURL:   strings.TrimRight(v.GetString("public-url"), "/"),
		RevalidateURL:   v.GetString("revalidate-url"),
	}
}
