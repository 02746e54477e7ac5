// Package cmd implements the CLI application to manage the expense ledger.
package cmd

import (
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/config"
	"github.com/sudokoi/expense-buddy-sub002/github"
	"github.com/sudokoi/expense-buddy-sub002/sync"
)

// Register registers every subcommand on c.
// A main package calls Register(), then Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "records")
	c.Register(&editCmd{}, "records")
	c.Register(&rmCmd{}, "records")
	c.Register(&listCmd{}, "records")
	c.Register(&fmtCmd{}, "records")
	c.Register(&importCmd{}, "records")

	c.Register(&currencyCmd{}, "settings")
	c.Register(&paymentCmd{}, "settings")

	c.Register(&syncCmd{}, "syncing")
	c.Register(&loadmoreCmd{}, "syncing")
	c.Register(&statusCmd{}, "syncing")

	c.Register(&topicCmd{}, "help")
	c.Register(&configCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configPath = flag.String("config", "", "Path to the config file (default "+config.DefaultPath()+")")

// loadConfig loads the tool configuration, honoring the -config flag.
func loadConfig() (config.Config, error) {
	return config.Load(*configPath)
}

// openStore opens the local replica under the configured data dir.
func openStore(cfg config.Config) *expensebuddy.FileStore {
	return expensebuddy.NewFileStore(cfg.DataDir)
}

// openTracker opens the pending-changes tracker under the configured data dir.
func openTracker(cfg config.Config) (*sync.Tracker, error) {
	return sync.OpenTracker(cfg.TrackerPath())
}

// openOrchestrator assembles the whole sync pipeline from the configuration.
func openOrchestrator(cfg config.Config) (*sync.Orchestrator, error) {
	if err := cfg.ValidateRemote(); err != nil {
		return nil, err
	}
	remote, err := github.New(github.Config{
		APIBase: cfg.Remote.APIBase,
		Repo:    cfg.Remote.Repo,
		Branch:  cfg.Remote.Branch,
		Token:   cfg.Remote.Token,
	})
	if err != nil {
		return nil, err
	}
	hashes, err := sync.OpenHashStore(cfg.HashStorePath())
	if err != nil {
		return nil, err
	}
	tracker, err := openTracker(cfg)
	if err != nil {
		return nil, err
	}
	return sync.New(sync.Config{
		Remote:            remote,
		Store:             openStore(cfg),
		Hashes:            hashes,
		Tracker:           tracker,
		ConflictThreshold: cfg.Sync.ConflictThreshold,
		WindowDays:        cfg.Sync.WindowDays,
		SyncSettings:      cfg.Sync.Settings,
	})
}

// ledgerCurrency returns the replicated ledger currency, empty when not set
// yet. Display only, so a failing settings load reads as unset.
func ledgerCurrency(store *expensebuddy.FileStore) string {
	settings, err := store.Settings()
	if err != nil || settings == nil {
		return ""
	}
	return settings.Currency
}

// findRecord returns the index of the record whose id matches exactly, or
// by unique prefix.
func findRecord(records []expensebuddy.Record, id string) (int, error) {
	if id == "" {
		return -1, fmt.Errorf("missing record id")
	}
	match := -1
	for i, r := range records {
		if r.ID == id {
			return i, nil
		}
		if strings.HasPrefix(r.ID, id) {
			if match >= 0 {
				return -1, fmt.Errorf("id %q is ambiguous (%s and %s)", id, records[match].ID, r.ID)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("no record with id %q", id)
	}
	return match, nil
}

// printMarkdown renders markdown for the terminal, falling back to the raw
// text when the terminal renderer is unavailable.
func printMarkdown(doc string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(doc); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(doc)
}
