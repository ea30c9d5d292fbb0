package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Version is set at build time with -ldflags.
var Version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("No .env file loaded: %s", err)
	}

	if level, err := logrus.ParseLevel(os.Getenv("UPTIMEGUARD_LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
