package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"

	"metropet.dev/trtc"
	"metropet.dev/trtc/config"
	"metropet.dev/trtc/downloader"
	"metropet.dev/trtc/lostfound"
	"metropet.dev/trtc/normalize"
	"metropet.dev/trtc/soap"
	"metropet.dev/trtc/storage"
	"metropet.dev/trtc/tdx"
)

var rootCmd = &cobra.Command{
	Use:          "trtc",
	Short:        "Taipei Metro route planner",
	Long:         "Plans trips and looks up station information on the Taipei Metro",
	SilenceUsage: true,
}

var (
	configPath string
	dataDir    string
	maxAge     time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Directory holding dataset files")
	rootCmd.PersistentFlags().DurationVarP(
		&maxAge,
		"max-age",
		"",
		trtc.DefaultRefreshInterval,
		"Refetch data when the stored dataset is older than this",
	)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func buildStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteStorage(storage.SQLiteConfig{
			OnDisk:    true,
			Directory: cfg.Storage.Directory,
		})
	case "postgres":
		return storage.NewPSQLStorage(cfg.Storage.PostgresDSN, false)
	}
	return storage.NewMemoryStorage(), nil
}

// TDX first, when configured, then the local data directory. Files in
// the directory override what TDX provides.
func buildSources(cfg *config.Config) ([]trtc.Source, error) {
	sources := []trtc.Source{}

	if cfg.TDXEnabled() {
		cc := &clientcredentials.Config{
			ClientID:     cfg.TDX.ClientID,
			ClientSecret: cfg.TDX.ClientSecret,
			TokenURL:     tdx.DefaultTokenURL,
		}
		if cfg.TDX.TokenURL != "" {
			cc.TokenURL = cfg.TDX.TokenURL
		}
		baseURL := tdx.DefaultBaseURL
		if cfg.TDX.BaseURL != "" {
			baseURL = cfg.TDX.BaseURL
		}

		client := tdx.NewClientWithTokenSource(baseURL, cc.TokenSource(context.Background()))
		if cfg.TDX.PageSize > 0 {
			client.PageSize = cfg.TDX.PageSize
		}
		if cfg.TDX.FarePageSize > 0 {
			client.FarePageSize = cfg.TDX.FarePageSize
		}
		if cfg.TDX.CacheFile != "" {
			fs, err := downloader.NewFilesystem(cfg.TDX.CacheFile)
			if err != nil {
				return nil, fmt.Errorf("creating TDX cache: %w", err)
			}
			client.Downloader = fs
			client.CacheTTL = cfg.TDX.CacheTTL
		}
		sources = append(sources, client)
	}

	if info, err := os.Stat(cfg.DataDir); err == nil && info.IsDir() {
		sources = append(sources, trtc.DirSource(cfg.DataDir))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no data: %s is not a directory and TDX isn't configured", cfg.DataDir)
	}

	return sources, nil
}

func buildManager(cfg *config.Config) (*trtc.Manager, error) {
	s, err := buildStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	sources, err := buildSources(cfg)
	if err != nil {
		return nil, err
	}

	m := trtc.NewManager(s, sources...)
	m.RefreshInterval = maxAge
	m.IndexCacheDir = cfg.IndexCache
	m.Options = trtc.NetworkOptions{
		Graph: trtc.GraphOptions{
			RideWeight:     cfg.Routing.RideWeight,
			TransferWeight: cfg.Routing.TransferWeight,
		},
		HighThreshold:  cfg.Routing.HighThreshold,
		LowThreshold:   cfg.Routing.LowThreshold,
		FuzzyCacheSize: cfg.Routing.FuzzyCacheSize,
		Normalizer:     normalize.New(cfg.Routing.Substitutions, cfg.Routing.Suffixes),
	}

	if cfg.RecommenderEnabled() {
		m.Options.Recommender = soap.NewClient(
			cfg.Recommender.Endpoint,
			cfg.Recommender.Username,
			cfg.Recommender.Password,
			cfg.Recommender.CacheTTL,
		)
	}

	if cfg.LostAndFoundEnabled() {
		client := lostfound.NewClient(cfg.LostAndFound.URL)
		if cfg.LostAndFound.CacheTTL > 0 {
			client.CacheTTL = cfg.LostAndFound.CacheTTL
		}
		m.Options.LostAndFound = client
	}

	return m, nil
}

// Refreshes data as needed and loads the network.
func LoadNetwork(ctx context.Context) (*trtc.Network, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	m, err := buildManager(cfg)
	if err != nil {
		return nil, err
	}

	_, err = m.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing data: %w", err)
	}

	return m.Load(ctx)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
