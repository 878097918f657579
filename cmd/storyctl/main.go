package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	cfgPkg "github.com/xhad/taleweaver/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "storyctl",
	Short: "storyctl - fill the story index and write stories from the terminal",
	Long: `storyctl works against the same configuration as storyd.

  storyctl ingest --dir ./stories      index every .txt and .md file
  storyctl ingest --url https://...    scrape and index a story site
  storyctl chat                        write a story with the model`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
}

func loadConfig() (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
