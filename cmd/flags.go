package cmd

import (
	"flag"
	"fmt"
	"os"
	"time"
)

type DiagnosisFlags struct {
	Level      int
	OutputFile string
	SkipAPI    bool
}

type Flags struct {
	Version        bool
	Once           bool
	Service        string
	Remote         string
	Interval       time.Duration
	DiagnosisFlags DiagnosisFlags
}

const usage = `Usage: board-collector [flags] [command]

Commands:
  run        poll the board and collect (default)
  watch      show live activity in the terminal
  cleanup    delete images past the retention window
  diagnose   check config, storage, board API and scorer
  service    run as a system service
  update     update to the latest release

Flags:
`

func ParseFlags() (Flags, string) {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) (Flags, string) {
	flags := Flags{}

	fs.BoolVar(&flags.Version, "v", false, "Display version information")
	fs.BoolVar(&flags.Version, "version", false, "Display version information")
	fs.BoolVar(&flags.Once, "once", false, "Run a single cycle and exit")
	fs.StringVar(&flags.Service, "service", "", "Control the service: install, uninstall, start, stop, restart")
	fs.StringVar(&flags.Remote, "remote", "", "Dashboard URL of a running collector for the watch command")
	fs.DurationVar(&flags.Interval, "interval", 5*time.Second, "Poll interval of the watch command in remote mode")
	fs.IntVar(&flags.DiagnosisFlags.Level, "level", 1, "Diagnosis verbosity level (1-2)")
	fs.StringVar(&flags.DiagnosisFlags.OutputFile, "output", "", "Diagnosis report file")
	fs.BoolVar(&flags.DiagnosisFlags.SkipAPI, "offline", false, "Skip diagnosis checks that need the network")

	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	fs.Parse(args)

	subcommand := "run"
	if rest := fs.Args(); len(rest) > 0 {
		subcommand = rest[0]
	}
	if flags.Service != "" {
		subcommand = "service"
	}

	return flags, subcommand
}
