package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/odemirel/csessync/config"
	"github.com/odemirel/csessync/remote"
	"github.com/odemirel/csessync/store"
)

func handleLogin(cfg *config.Config, st *store.Store, logger zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	token := fs.String("token", "", "Store a personal access token instead of using the device flow")
	owner := fs.String("owner", "", "Account the token publishes as (required with --token)")
	clientID := fs.String("client-id", getEnv("CSESSYNC_CLIENT_ID", ""), "OAuth client ID for the device flow")
	fs.Parse(args)

	// Static credential path: a pasted token with an explicit owner.
	if *token != "" {
		if *owner == "" {
			fmt.Fprintf(os.Stderr, "Error: --owner is required with --token\n")
			os.Exit(1)
		}
		storeCredential(st, *token, *owner)
		fmt.Printf("✓ Stored access token for %s\n", *owner)
		return
	}

	if *clientID == "" {
		fmt.Fprintf(os.Stderr, "Error: --client-id (or CSESSYNC_CLIENT_ID) is required for the device flow\n")
		os.Exit(1)
	}

	ctx := context.Background()
	auth := remote.NewAuthenticator(cfg.AuthBaseURL, cfg.APIBaseURL, *clientID, nil, logger)

	code, err := auth.RequestDeviceCode(ctx, "repo")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Open %s and enter the code: %s\n", code.VerificationURI, code.UserCode)
	fmt.Println("Waiting for authorization...")

	accessToken, err := auth.WaitForToken(ctx, code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	user, err := auth.CurrentUser(ctx, accessToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	storeCredential(st, accessToken, user.Login)
	fmt.Printf("✓ Logged in as %s\n", user.Login)
}

func storeCredential(st *store.Store, token, login string) {
	if err := st.Set(store.KeyToken, token); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to store token: %v\n", err)
		os.Exit(1)
	}
	if err := st.Set(store.KeyUserLogin, login); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to store user: %v\n", err)
		os.Exit(1)
	}
}

func handleLogout(st *store.Store) {
	// Clearing credentials does not cancel a publish already in flight; it
	// only affects future cycles.
	if err := st.Delete(store.KeyToken); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to clear token: %v\n", err)
		os.Exit(1)
	}
	if err := st.Delete(store.KeyUserLogin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to clear user: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Cleared stored credentials")
}
