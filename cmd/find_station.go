package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"delyzer.dev/delyzer"
	"delyzer.dev/delyzer/config"
)

var findStationCmd = &cobra.Command{
	Use:   "find-station",
	Short: "Finds station IDs by name",
	Args:  cobra.NoArgs,
	RunE:  findStation,
}

var stationName string

func init() {
	findStationCmd.Flags().StringVarP(&stationName, "station-name", "", "", "Part of the station name, case insensitive")
	findStationCmd.MarkFlagRequired("station-name")
	rootCmd.AddCommand(findStationCmd)
}

func findStation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	catalog, err := delyzer.LoadCatalog(cfg.Catalog.Stations, "")
	if err != nil {
		return err
	}

	stations := catalog.Find(stationName)
	if len(stations) == 0 {
		fmt.Printf("Es existiert keine Station mit dem Namen \"%s\".\n", stationName)
		return nil
	}

	fmt.Printf("Folgende Stationen enthalten den Namen \"%s\":\n", stationName)
	for _, station := range stations {
		fmt.Printf("%d %s\n", station.Number, station.Name)
	}

	return nil
}
