package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetches and stores the latest network data",
	Args:  cobra.NoArgs,
	RunE:  refresh,
}

var force bool

func init() {
	refreshCmd.Flags().BoolVarP(&force, "force", "f", false, "Fetch even if stored data is recent")
	rootCmd.AddCommand(refreshCmd)
}

func refresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := buildManager(cfg)
	if err != nil {
		return err
	}
	if force {
		m.RefreshInterval = 0
	}

	metadata, err := m.Refresh(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf(
		"%s from %s, retrieved %s: %d routes, %d stations, %d transfers, %d fares\n",
		metadata.Hash[:16],
		metadata.Source,
		metadata.RetrievedAt.Local().Format("2006-01-02 15:04"),
		metadata.Routes,
		metadata.Stations,
		metadata.Transfers,
		metadata.Fares,
	)

	// Also verifies the data is loadable and warms the index cache.
	network, err := m.Load(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d stations on %d lines\n", network.Graph.NodeCount(), len(network.Graph.Lines()))

	return nil
}
