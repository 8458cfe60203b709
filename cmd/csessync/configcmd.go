package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/odemirel/csessync/remote"
	"github.com/odemirel/csessync/store"
)

func handleConfig(st *store.Store, args []string) {
	if len(args) < 1 {
		printConfigUsage()
		os.Exit(1)
	}

	action := args[0]
	switch action {
	case "show":
		handleConfigShow(st)
	case "set-repo":
		handleConfigSetRepo(st, args[1:])
	case "help", "--help", "-h":
		printConfigUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown config action: %s\n\n", action)
		printConfigUsage()
		os.Exit(1)
	}
}

func printConfigUsage() {
	fmt.Println("csessync config - Show or change the target repository")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  csessync config show")
	fmt.Println("  csessync config set-repo --url <repository-url>")
	fmt.Println("  csessync config set-repo --owner <owner> --name <name>")
}

func handleConfigShow(st *store.Store) {
	fmt.Printf("%-12s %s\n", "token:", maskedSetting(st, store.KeyToken))
	fmt.Printf("%-12s %s\n", "user:", settingOr(st, store.KeyUserLogin, "(not logged in)"))
	fmt.Printf("%-12s %s\n", "repo owner:", settingOr(st, store.KeyRepoOwner, "(defaults to user)"))
	fmt.Printf("%-12s %s\n", "repo name:", settingOr(st, store.KeyRepoName, "(not set)"))
}

func handleConfigSetRepo(st *store.Store, args []string) {
	fs := flag.NewFlagSet("config set-repo", flag.ExitOnError)
	repoURL := fs.String("url", "", "Repository URL to publish to")
	owner := fs.String("owner", "", "Repository owner")
	name := fs.String("name", "", "Repository name")
	fs.Parse(args)

	if *repoURL != "" {
		parsedOwner, parsedName, err := remote.ParseRepoURL(*repoURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		*owner, *name = parsedOwner, parsedName
		mustSet(st, store.KeyRepoURL, *repoURL)
	}

	if *owner == "" || *name == "" {
		fmt.Fprintf(os.Stderr, "Error: either --url or both --owner and --name are required\n")
		os.Exit(1)
	}

	mustSet(st, store.KeyRepoOwner, *owner)
	mustSet(st, store.KeyRepoName, *name)
	fmt.Printf("✓ Publishing to %s/%s\n", *owner, *name)
}

func mustSet(st *store.Store, key, value string) {
	if err := st.Set(key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to store %s: %v\n", key, err)
		os.Exit(1)
	}
}

func settingOr(st *store.Store, key, fallback string) string {
	value, err := st.Get(key)
	if errors.Is(err, store.ErrNotFound) || value == "" {
		return fallback
	}
	if err != nil {
		return fmt.Sprintf("(error: %v)", err)
	}
	return value
}

func maskedSetting(st *store.Store, key string) string {
	value, err := st.Get(key)
	if errors.Is(err, store.ErrNotFound) || value == "" {
		return "(not set)"
	}
	if err != nil {
		return fmt.Sprintf("(error: %v)", err)
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
