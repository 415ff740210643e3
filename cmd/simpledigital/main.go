package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// run dispatches subcommands (serve, simulate, hash-token).
func run(args []string) error {
	if len(args) == 0 {
		return runServe(nil)
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "simulate":
		return runSimulate(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: simpledigital <command> [options]

Commands:
  serve        Run the configuration relay (default)
  simulate     Replay the companion lifecycle against an in-memory host
  hash-token   Print the bcrypt hash of a bridge token
  help         Show this help message

Examples:
  simpledigital serve --config simpledigital.yaml
  simpledigital simulate --response '%%7B%%22date%%22%%3A%%22false%%22%%7D'
  simpledigital hash-token
`)
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
