package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/odemirel/csessync/config"
	"github.com/odemirel/csessync/store"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	cfg := loadConfig()
	st := openStore()
	defer st.Close()

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "login":
		handleLogin(cfg, st, logger, args)
	case "logout":
		handleLogout(st)
	case "config":
		handleConfig(st, args)
	case "arm":
		handleArm(st, args)
	case "disarm":
		handleDisarm(st)
	case "watch":
		handleWatch(cfg, st, logger, args)
	case "publish":
		handlePublish(cfg, st, logger, args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	path := os.Getenv("CSESSYNC_CONFIG")
	if path == "" {
		defaultPath, err := config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		path = defaultPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func openStore() *store.Store {
	path := getEnv("CSESSYNC_DB", defaultDBPath())

	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open store: %v\n", err)
		os.Exit(1)
	}
	return st
}

func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "csessync.db"
	}
	return filepath.Join(homeDir, ".csessync", "csessync.db")
}

func printUsage() {
	fmt.Println("csessync - publish accepted CSES submissions to a GitHub repository")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  csessync <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login      Authenticate via the device flow or store a token")
	fmt.Println("  logout     Clear stored credentials")
	fmt.Println("  config     Show or change the target repository")
	fmt.Println("  arm        Record that a submission was just sent")
	fmt.Println("  disarm     Clear the armed flag")
	fmt.Println("  watch      Wait for a verdict on a result page and publish on accept")
	fmt.Println("  publish    Extract a result page immediately and publish on accept")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  CSESSYNC_DB         Path to the settings database (default: ~/.csessync/csessync.db)")
	fmt.Println("  CSESSYNC_CONFIG     Path to the config file (default: ~/.csessync/config.yaml)")
	fmt.Println("  CSESSYNC_CLIENT_ID  OAuth client ID for the device flow")
}
