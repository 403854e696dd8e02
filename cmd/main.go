package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"delyzer.dev/delyzer"
	"delyzer.dev/delyzer/config"
	"delyzer.dev/delyzer/downloader"
	"delyzer.dev/delyzer/feed"
	"delyzer.dev/delyzer/storage"
)

var rootCmd = &cobra.Command{
	Use:          "delyzer",
	Short:        "VVS delay analyzer",
	Long:         "Collects real time departures and serves delay statistics",
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
}

func main() {
	delyzer.InitLogging()

	if err := rootCmd.Execute(); err != nil {
		if isConfigurationError(err) {
			log.Printf("Error: %v (see delyzer --help)", err)
			os.Exit(2)
		}
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

// Opens the configured store. Postgres is retried with exponential
// back-off, as the database may still be starting up.
func openStorage(ctx context.Context, cfg config.DatabaseConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStorage(), nil

	case config.BackendSQLite:
		s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{
			OnDisk:    true,
			Directory: cfg.Directory,
		})
		if err != nil {
			return nil, &delyzer.StoreError{Op: "open", Err: err}
		}
		return s, nil

	case config.BackendPostgres:
		b := &backoff.ExponentialBackOff{
			InitialInterval:     time.Second,
			RandomizationFactor: 0.2,
			Multiplier:          2,
			MaxInterval:         30 * time.Second,
			MaxElapsedTime:      2 * time.Minute,
			Stop:                backoff.Stop,
			Clock:               backoff.SystemClock,
		}
		b.Reset()

		s, err := backoff.RetryNotifyWithData(
			func() (*storage.PSQLStorage, error) {
				return storage.NewPSQLStorage(cfg.Postgres, false)
			},
			backoff.WithContext(b, ctx),
			func(err error, d time.Duration) {
				log.Printf("Warning: connecting to postgres failed, retrying in %s: %v", d, err)
			},
		)
		if err != nil {
			return nil, &delyzer.StoreError{Op: "open", Err: err}
		}
		return s, nil
	}

	return nil, &delyzer.ConfigurationError{Reason: fmt.Sprintf("unknown database backend %q", cfg.Backend)}
}

// Loads the reference catalog. Failing that, commands keep running
// without station names.
func loadCatalog(cfg config.CatalogConfig) *delyzer.Catalog {
	catalog, err := delyzer.LoadCatalog(cfg.Stations, cfg.Lines)
	if err != nil {
		log.Printf("Warning: station data unavailable: %v", err)
		return nil
	}
	return catalog
}

// Builds the departure feed client. With a record file every
// response is recorded there, or replayed from it when offline.
func buildFeed(cfg config.FeedConfig) (feed.Client, error) {
	var d downloader.Downloader
	if cfg.Record != "" {
		fs, err := downloader.NewFilesystem(cfg.Record, cfg.Offline)
		if err != nil {
			return nil, &delyzer.ConfigurationError{Reason: "opening feed record", Err: err}
		}
		d = fs
	}

	timeout := cfg.Timeout()

	switch cfg.Type {
	case config.FeedEFA:
		if d == nil {
			d = downloader.HTTP{}
		}
		client := feed.NewEFA(cfg.URL, d)
		if timeout > 0 {
			client.Timeout = timeout
		}
		return client, nil

	case config.FeedGTFSRT:
		if cfg.URL == "" || cfg.URL == feed.DefaultEFAURL {
			return nil, &delyzer.ConfigurationError{Reason: "GTFS-Realtime feed requires a URL"}
		}
		if d == nil {
			d = downloader.NewMemoryDownloader()
		}
		client := feed.NewGTFSRT(cfg.URL, cfg.Headers, d)
		if timeout > 0 {
			client.Timeout = timeout
		}
		if ttl := cfg.CacheTTL(); ttl > 0 {
			client.CacheTTL = ttl
		}
		return client, nil
	}

	return nil, &delyzer.ConfigurationError{Reason: fmt.Sprintf("unknown feed type %q", cfg.Type)}
}

func isConfigurationError(err error) bool {
	configErr := &delyzer.ConfigurationError{}
	return errors.As(err, &configErr)
}
