package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"delyzer.dev/delyzer/config"
	"delyzer.dev/delyzer/model"
	"delyzer.dev/delyzer/viewer"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Shows delay charts from a running API server",
	Long: `Renders delay charts as text. Reads one command per line from
stdin: n (next chart), p (previous chart), l (next line), r (reload)
and q (quit).`,
	Args: cobra.NoArgs,
	RunE: view,
}

var (
	apiURL        string
	viewLine      string
	viewDirection string
)

func init() {
	viewCmd.Flags().StringVarP(&apiURL, "url", "u", "", "API base URL")
	viewCmd.Flags().StringVarP(&viewLine, "line", "l", "", "Initial line")
	viewCmd.Flags().StringVarP(&viewDirection, "direction", "d", "", "Initial direction")
	viewCmd.MarkFlagsRequiredTogether("line", "direction")
	rootCmd.AddCommand(viewCmd)
}

func view(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.Viewer.URL = apiURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := viewer.New(viewer.NewClient(cfg.Viewer.URL), os.Stdout)
	if viewLine != "" {
		v.SetLine(model.Line{Number: viewLine, Direction: viewDirection})
	}

	return v.Run(ctx, os.Stdin)
}
