package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/odemirel/csessync/config"
	"github.com/odemirel/csessync/judge"
	"github.com/odemirel/csessync/notify"
	"github.com/odemirel/csessync/publish"
	"github.com/odemirel/csessync/remote"
	"github.com/odemirel/csessync/store"
	"github.com/odemirel/csessync/watch"
)

func handleArm(st *store.Store, args []string) {
	taskURL := ""
	if len(args) > 0 {
		taskURL = args[0]
	}
	if err := st.Arm(taskURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to arm: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Armed: waiting for the next verdict")
}

func handleDisarm(st *store.Store) {
	if err := st.Disarm(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to disarm: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Disarmed")
}

func handleWatch(cfg *config.Config, st *store.Store, logger zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	armFlag := fs.Bool("arm", false, "Arm before watching")
	fs.Parse(args)

	if len(fs.Args()) < 1 {
		fmt.Fprintf(os.Stderr, "Error: result page URL is required\n")
		fmt.Fprintf(os.Stderr, "Usage: csessync watch [--arm] <result-url>\n")
		os.Exit(1)
	}
	resultURL := fs.Args()[0]

	if *armFlag {
		if err := st.Arm(resultURL); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to arm: %v\n", err)
			os.Exit(1)
		}
	}

	client := &http.Client{Timeout: cfg.FetchTimeout}
	watcher := watch.New(
		judge.NewExtractor(cfg.JudgeBaseURL, client, logger),
		newBoundPublisher(cfg, st, logger),
		st,
		cfg.Watch.Timeout,
		logger,
	)

	ctx := context.Background()
	src := watch.URLSource{URL: resultURL, Client: client}
	obs := watch.NewPagePoller(ctx, src, cfg.Watch.PollInterval, logger)

	state, err := watcher.Run(ctx, src, obs)
	fmt.Printf("Watch finished: %s\n", state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handlePublish(cfg *config.Config, st *store.Store, logger zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	fs.Parse(args)

	if len(fs.Args()) < 1 {
		fmt.Fprintf(os.Stderr, "Error: result page URL is required\n")
		fmt.Fprintf(os.Stderr, "Usage: csessync publish <result-url>\n")
		os.Exit(1)
	}
	resultURL := fs.Args()[0]

	ctx := context.Background()
	client := &http.Client{Timeout: cfg.FetchTimeout}

	page, err := judge.FetchPage(ctx, client, resultURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	extractor := judge.NewExtractor(cfg.JudgeBaseURL, client, logger)
	record, verdict, err := extractor.Extract(ctx, page)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if verdict != judge.VerdictAccepted {
		fmt.Printf("Nothing to publish: page shows %s\n", verdict)
		return
	}

	if err := newBoundPublisher(cfg, st, logger).Publish(ctx, record); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Published %s\n", record.ProblemName)
}

// boundPublisher fixes the publish target resolved from stored settings, so
// the watcher only deals in records.
type boundPublisher struct {
	publisher *publish.Publisher
	target    publish.Target
}

func newBoundPublisher(cfg *config.Config, st *store.Store, logger zerolog.Logger) boundPublisher {
	token := settingValue(st, store.KeyToken)

	// Owner defaults to the authenticated identity when not configured
	// explicitly.
	owner := settingValue(st, store.KeyRepoOwner)
	if owner == "" {
		owner = settingValue(st, store.KeyUserLogin)
	}

	remoteClient := remote.NewClient(cfg.APIBaseURL, token, nil, logger)
	publisher := publish.New(remoteClient, st, notify.LogNotifier{Log: logger}, publish.Options{
		ProblemsRoot: cfg.ProblemsRoot,
		MaxAttempts:  cfg.Publish.MaxAttempts,
		Backoff:      cfg.Publish.Backoff,
		DedupeWindow: cfg.Publish.DedupeWindow,
	}, logger)

	return boundPublisher{
		publisher: publisher,
		target: publish.Target{
			Owner:      owner,
			Repo:       settingValue(st, store.KeyRepoName),
			Credential: token,
		},
	}
}

func (b boundPublisher) Publish(ctx context.Context, record *judge.SubmissionRecord) error {
	_, err := b.publisher.Publish(ctx, b.target, record)
	return err
}

func settingValue(st *store.Store, key string) string {
	value, err := st.Get(key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Error: failed to read setting %s: %v\n", key, err)
		os.Exit(1)
	}
	return value
}
