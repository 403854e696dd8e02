package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"delyzer.dev/delyzer"
	"delyzer.dev/delyzer/config"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collects departures of a station or of all stations on a line",
	Long: `Polls the departure feed at a fixed interval and stores every
departure reported in real time. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: collect,
}

var (
	observeStation int
	observeLine    string
	clearDB        bool
	collectLimit   int
	collectEvery   time.Duration
	feedType       string
	feedURL        string
	feedHeaders    []string
	feedRecord     string
	feedOffline    bool
)

func init() {
	collectCmd.Flags().IntVarP(&observeStation, "observe-station", "s", 0, "Station ID to observe")
	collectCmd.Flags().StringVarP(&observeLine, "observe-line", "l", "", "Observe all stations of this line, and only keep its departures")
	collectCmd.Flags().BoolVarP(&clearDB, "clear", "", false, "Delete all stored departures before collecting")
	collectCmd.Flags().IntVarP(&collectLimit, "limit", "n", delyzer.DefaultLimit, "Max departures requested per station")
	collectCmd.Flags().DurationVarP(&collectEvery, "interval", "i", delyzer.DefaultInterval, "Time between fetch cycles")
	collectCmd.Flags().StringVarP(&feedType, "feed", "", config.FeedEFA, "Feed type (efa or gtfsrt)")
	collectCmd.Flags().StringVarP(&feedURL, "feed-url", "", "", "Feed URL")
	collectCmd.Flags().StringSliceVarP(&feedHeaders, "header", "", []string{}, "Feed HTTP header")
	collectCmd.Flags().StringVarP(&feedRecord, "feed-record", "", "", "Record feed responses to this file")
	collectCmd.Flags().BoolVarP(&feedOffline, "offline", "", false, "Replay feed responses from --feed-record")
	rootCmd.AddCommand(collectCmd)
}

// Applies flags given on the command line on top of cfg.
func applyCollectFlags(cmd *cobra.Command, cfg *config.AppConfig) error {
	flags := cmd.Flags()
	if flags.Changed("observe-station") {
		cfg.Collector.Station = observeStation
	}
	if flags.Changed("observe-line") {
		cfg.Collector.Line = observeLine
	}
	if flags.Changed("limit") {
		cfg.Collector.Limit = collectLimit
	}
	if flags.Changed("interval") {
		if collectEvery < time.Second || collectEvery%time.Second != 0 {
			return &delyzer.ConfigurationError{
				Reason: fmt.Sprintf("interval must be a whole number of seconds, got %s", collectEvery),
			}
		}
		cfg.Collector.IntervalSeconds = int(collectEvery / time.Second)
	}
	if flags.Changed("feed") {
		cfg.Feed.Type = feedType
	}
	if flags.Changed("feed-url") {
		cfg.Feed.URL = feedURL
	}
	if flags.Changed("feed-record") {
		cfg.Feed.Record = feedRecord
	}
	if flags.Changed("offline") {
		cfg.Feed.Offline = feedOffline
	}
	if flags.Changed("header") {
		headers, err := parseHeaders(feedHeaders)
		if err != nil {
			return &delyzer.ConfigurationError{Reason: "invalid header", Err: err}
		}
		if cfg.Feed.Headers == nil {
			cfg.Feed.Headers = map[string]string{}
		}
		for k, v := range headers {
			cfg.Feed.Headers[k] = v
		}
	}

	return cfg.Validate()
}

func collect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyCollectFlags(cmd, cfg); err != nil {
		return err
	}

	catalog := loadCatalog(cfg.Catalog)
	stations, err := delyzer.ResolveStations(catalog, cfg.Collector.Station, cfg.Collector.Line)
	if err != nil {
		return err
	}

	client, err := buildFeed(cfg.Feed)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStorage(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	collector := delyzer.NewCollector(client, s, delyzer.CollectorConfig{
		StationIDs:   stations,
		Interval:     cfg.Interval(),
		Limit:        cfg.Collector.Limit,
		Line:         cfg.Collector.Line,
		Clear:        clearDB,
		FetchTimeout: cfg.Feed.Timeout(),
	})

	log.Printf("Observing station(s) %v", stations)
	return collector.Run(ctx)
}
