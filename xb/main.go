// Command xb keeps a personal expense ledger and syncs it through a
// GitHub repository.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
	"github.com/sudokoi/expense-buddy-sub002/cmd"
	"github.com/sudokoi/expense-buddy-sub002/docs"
)

// completion wires shell completion. When the shell asks for candidates it
// prints them and exits; otherwise it returns immediately. Install with
// COMP_INSTALL=1 xb.
func completion() {
	recordFlags := map[string]complete.Predictor{
		"a": predict.Something,
		"c": predict.Something,
		"d": predict.Something,
		"n": predict.Nothing,
		"p": predict.Nothing,
	}
	var topics complete.Predictor = predict.Something
	if names, err := docs.GetAllTopics(); err == nil {
		topics = predict.Set(names)
	}

	xb := &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.toml"),
		},
		Sub: map[string]*complete.Command{
			"add":  {Flags: recordFlags},
			"edit": {Flags: recordFlags, Args: predict.Something},
			"rm":   {Args: predict.Something},
			"list": {Flags: map[string]complete.Predictor{
				"s":   predict.Something,
				"d":   predict.Something,
				"c":   predict.Something,
				"all": predict.Nothing,
			}},
			"fmt": {},
			"import": {
				Flags: map[string]complete.Predictor{"c": predict.Something},
				Args:  predict.Files("*.csv"),
			},
			"currency": {Args: predict.Something},
			"payment": {Flags: map[string]complete.Predictor{
				"add": predict.Something,
				"rm":  predict.Something,
			}},
			"sync": {Flags: map[string]complete.Predictor{
				"prefer": predict.Set{"local", "remote", "newer"},
			}},
			"loadmore": {Flags: map[string]complete.Predictor{
				"days": predict.Something,
			}},
			"status": {},
			"topic":  {Args: topics},
			"config": {Flags: map[string]complete.Predictor{
				"init":   predict.Nothing,
				"repo":   predict.Something,
				"branch": predict.Something,
				"token":  predict.Something,
			}},
			"help":     {},
			"flags":    {},
			"commands": {},
		},
	}
	xb.Complete("xb")
}

func main() {
	completion()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "help")
	commander.Register(commander.FlagsCommand(), "help")
	commander.Register(commander.CommandsCommand(), "help")
	cmd.Register(commander)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
