package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/nimasrn/church-messaging/internal/app"
	"github.com/nimasrn/church-messaging/internal/config"
	"github.com/nimasrn/church-messaging/pkg/logger"
	"github.com/nimasrn/church-messaging/pkg/pg"
)

const usage = `usage: cli <command> [--env=path] [--dir=./migrations]

commands:
  migrate   apply every pending migration
  status    print the state of every migration`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	pgConf := app.WriteConfig(config.Get())
	dir := getMigrationPath()

	switch os.Args[1] {
	case "migrate":
		err = pg.Migrate(pgConf, dir)
	case "status":
		err = pg.MigrationStatus(pgConf, dir)
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration: command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func getEnvPath() string {
	if p := app.EnvPath(os.Args); p != "" {
		return p
	}
	if _, err := os.Stat(".env"); err != nil {
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--dir=") {
			return strings.TrimPrefix(v, "--dir=")
		}
	}
	return "./migrations"
}
