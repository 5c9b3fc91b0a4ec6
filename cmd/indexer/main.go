package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dexlens/dexlens/pkg/app"
	"github.com/dexlens/dexlens/pkg/app/indexer"
	"github.com/dexlens/dexlens/pkg/config"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = indexer.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Indexer exited with error: %v\n", err)
		os.Exit(1)
	}
}
