package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/agnosto/board-collector/cmd"
	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/logger"
	"github.com/agnosto/board-collector/updater"
	"github.com/fatih/color"
)

const version = "v0.1.0"

func main() {
	flags, subcommand := cmd.ParseFlags()

	if flags.Version {
		fmt.Printf("Board Collector version %s\n", version)
		return
	}

	if subcommand == "update" {
		err := updater.CheckForUpdate(version)
		switch {
		case errors.Is(err, updater.ErrUpToDate):
			fmt.Println("You are already on the latest version.")
		case err != nil:
			color.Red("Error updating: %v", err)
			os.Exit(1)
		default:
			color.Green("Update successful. Please restart the application.")
		}
		return
	}

	config.VerifyConfigOnStartup()

	configPath := config.GetConfigPath()
	cfg, err := config.LoadConfig(configPath)
	if err != nil && subcommand != "diagnose" {
		// diagnose reports a broken config instead of refusing to start
		log.Fatalf("Error loading config %s: %v", configPath, err)
	}

	if cfg != nil {
		// The watch view owns the terminal, so only the other commands mirror the log to stdout.
		if err := logger.InitLogger(cfg, subcommand == "run" && !flags.Once); err != nil {
			log.Fatal(err)
		}
	}

	if subcommand == "diagnose" {
		if failures := cmd.NewDiagnosisSuite(flags.DiagnosisFlags, cfg).Run(); failures > 0 {
			os.Exit(1)
		}
		return
	}

	if cfg.Options.CheckUpdates {
		if available, latest, err := updater.CheckUpdateAvailable(version); err == nil && available {
			color.Yellow("Update %s available! Run 'board-collector update' to update.", latest)
		}
	}

	logger.Logger.Printf("[INFO] Starting Board Collector version %s", version)

	switch subcommand {
	case "run":
		err = cmd.RunCollector(cfg, flags.Once)
	case "watch":
		err = cmd.RunWatch(cfg, flags)
	case "cleanup":
		err = cmd.RunCleanup(cfg)
	case "service":
		err = cmd.RunService(cfg, flags.Service)
	default:
		fmt.Printf("Unknown command %q\n\n", subcommand)
		fmt.Printf("Run '%s -h' for usage.\n", os.Args[0])
		os.Exit(2)
	}

	if err != nil {
		logger.Logger.Printf("[ERROR] [%s] %v", subcommand, err)
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
