package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/subcommands"
	"github.com/sudokoi/expense-buddy-sub002/config"
)

type configCmd struct {
	init   bool
	repo   string
	branch string
	token  string
}

func (*configCmd) Name() string     { return "config" }
func (*configCmd) Synopsis() string { return "Show or initialize the configuration." }
func (*configCmd) Usage() string {
	return `xb config [-init -repo owner/name [-branch b] [-token t]]

  Without flags, shows the resolved configuration: defaults, then the
  config file, then XB_ environment variables.

  With -init, writes a config file pointing at the given repository.
  Prefer the GITHUB_TOKEN env var over -token; a token passed here lands
  in the file in plain text.

Usage Examples:
  xb config
  xb config -init -repo alice/expenses
`
}

func (c *configCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.init, "init", false, "Write a config file for the given remote.")
	f.StringVar(&c.repo, "repo", "", "Repository hosting the ledger, as owner/name.")
	f.StringVar(&c.branch, "branch", "", "Branch to sync with (default: the repository's default branch).")
	f.StringVar(&c.token, "token", "", "API token to store in the file (prefer the GITHUB_TOKEN env var).")
}

func (c *configCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.init {
		return c.writeConfig()
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		return subcommands.ExitFailure
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	token := "empty"
	if cfg.Remote.Token != "" {
		token = "set"
	}
	fmt.Printf("config file: %s\n", path)
	fmt.Printf("data_dir = %q\n", cfg.DataDir)
	fmt.Printf("remote.api_base = %q\n", cfg.Remote.APIBase)
	fmt.Printf("remote.repo = %q\n", cfg.Remote.Repo)
	fmt.Printf("remote.branch = %q\n", cfg.Remote.Branch)
	fmt.Printf("remote.token = %s\n", token)
	fmt.Printf("sync.conflict_threshold = %q\n", cfg.Sync.ConflictThreshold)
	fmt.Printf("sync.window_days = %d\n", cfg.Sync.WindowDays)
	fmt.Printf("sync.settings = %t\n", cfg.Sync.Settings)
	return subcommands.ExitSuccess
}

func (c *configCmd) writeConfig() subcommands.ExitStatus {
	if c.repo == "" {
		fmt.Fprintln(os.Stderr, "Error: -init needs -repo.")
		return subcommands.ExitUsageError
	}

	cfg, err := loadConfig()
	if errors.Is(err, fs.ErrNotExist) {
		// writing a fresh file, start from defaults and env
		cfg, err = config.Load("")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		return subcommands.ExitFailure
	}
	cfg.Remote.Repo = c.repo
	if c.branch != "" {
		cfg.Remote.Branch = c.branch
	}
	if c.token != "" {
		cfg.Remote.Token = c.token
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.Save(cfg, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("✅ wrote %s\n", path)
	return subcommands.ExitSuccess
}
