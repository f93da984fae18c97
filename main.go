package main

import (
	"os"

	"pax-advisor/internal/logger"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("CLI", err.Error())
		os.Exit(1)
	}
}
