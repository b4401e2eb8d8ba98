package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/app"
)

func main() {
	configPath := flag.String("config", os.Getenv("NATURELIFE_CONFIG"), "path to config.yaml")
	flag.Parse()

	if err := app.Run(*configPath); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}
