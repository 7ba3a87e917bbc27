package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"Stooorage/internal/di"
	"Stooorage/pkg/config"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "stooorage: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fset := flag.NewFlagSet("stooorage", flag.ContinueOnError)
	configPath := fset.String("config", "config/config.yaml", "YAML config file")
	envPath := fset.String("env", ".env", "dotenv file loaded before the config; may be absent")
	if err := fset.Parse(args); err != nil {
		return err
	}

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envPath, err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return app.Run()
}
