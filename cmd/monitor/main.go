package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/s3mirror/internal/config"
	"github.com/dmitrijs2005/s3mirror/internal/monitor"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: monitor [flags] <watch_path> <bucket> [key_prefix]")
	fmt.Fprintln(os.Stderr, "Run 'monitor -h' for the flag list.")
}

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	if err := cfg.Validate(); err != nil {
		log.Printf("%v", err)
		usage()
		os.Exit(1)
	}

	app, err := monitor.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
