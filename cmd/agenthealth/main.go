// Command agenthealth serves the health verdict of a supervisor agent on its
// admin port.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/agenthealth/config"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults apply when empty)")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *printConfig, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "agenthealth: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(path)
}

func run(ctx context.Context, configPath string, printOnly bool, stdout io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if printOnly {
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	return a.run(ctx)
}
