// Package main provides the shadowscan CLI for running a solar shadow
// computation over a DTM/DSM pair and an area of interest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/stbrinkmann/shadowscan/internal/app"
	"github.com/stbrinkmann/shadowscan/internal/constants"
	"github.com/stbrinkmann/shadowscan/internal/log"
	"github.com/stbrinkmann/shadowscan/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "shadowscan.yaml", "Path to the run configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("shadowscan %s (%s/%s)\n", constants.Version, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(*debug || cfg.Logging.Debug, log.FileConfig{
		Path:       cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	application := app.New(cfg)
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("run error: %v", err)
		os.Exit(1)
	}
}
