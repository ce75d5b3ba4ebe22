package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgallion1/pagegest/internal/config"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "pagegest",
	Short: "Crawl paginated documents into a vector store",
	Long: `Pagegest walks a paginated online reader page by page, stitches text
split across page boundaries, groups paragraphs into chapter/article chunks
and stores their embeddings in a vector collection.

Run a single document with "pagegest ingest" or start the job API with
"pagegest serve".`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./pagegest.yaml or ~/.pagegest/pagegest.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and environment into a fresh viper
// instance and binds the command's flags on top.
func loadConfig(cmd *cobra.Command, bind map[string]string) (*viper.Viper, error) {
	v, err := config.New(cfgFile)
	if err != nil {
		return nil, err
	}
	for key, flag := range bind {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return v, nil
}

func newLogger(w io.Writer, json bool) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
