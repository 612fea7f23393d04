// Command gamectl exports, imports and audits stored games.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

// Options is the root command. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Verbose bool      `short:"v" long:"verbose" description:"log at debug level"`
	Export  ExportCmd `command:"export" description:"Export every game with its action log to JSON"`
	Import  ImportCmd `command:"import" description:"Import games from an export file, skipping existing ids"`
	Replay  ReplayCmd `command:"replay" description:"Replay action logs and check them against stored scores"`
}

func main() {
	opts := &Options{}
	parser := newParser(opts)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(flagsErr.Message)
			os.Exit(0)
		}
		logrus.Fatalf("%v", err)
	}
}

func newParser(opts *Options) *flags.Parser {
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if opts.Verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}
	return parser
}
