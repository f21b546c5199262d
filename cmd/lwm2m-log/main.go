// Command lwm2m-log views and analyzes protocol log files written by
// lwm2m-client with the --protocol-log flag.
//
// Usage:
//
//	lwm2m-log <command> [flags] <file.llog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View one bootstrap session
//	lwm2m-log view --session 3f2a9c1e-5b7d-4e8f-9a0b-1c2d3e4f5a6b client.llog
//
//	# View only session state changes
//	lwm2m-log view --layer session --category state client.llog
//
//	# Export to CSV
//	lwm2m-log export --format csv -o client.csv client.llog
//
//	# Keep only traffic from the bootstrap server
//	lwm2m-log filter --remote 192.0.2.10:5683 -o bs.llog client.llog
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/lwm2m-go/lwm2m-client/cmd/lwm2m-log/commands"
)

const usage = `lwm2m-log - LwM2M Client Protocol Log Analyzer

Usage:
  lwm2m-log <command> [flags] <file.llog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "lwm2m-log <command> --help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set whose usage prints header followed by the
// flag defaults.
func newFlagSet(name, header string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, header)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses args and returns the log file path. pflag.ErrHelp is returned
// as-is so the caller can exit quietly.
func parseArgs(fs *pflag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", fmt.Errorf("log file path required")
	}
	return fs.Arg(0), nil
}

func runView(args []string) error {
	fs := newFlagSet("view", `lwm2m-log view - View log file in human-readable format

Usage:
  lwm2m-log view [flags] <file.llog>

Flags:
`)
	session := fs.String("session", "", "Filter by bootstrap session ID")
	layer := fs.String("layer", "", "Filter by layer (message, session, engine)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")

	path, err := parseArgs(fs, args)
	if err == pflag.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}

	filter := commands.ViewFilter{SessionID: *session}

	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			return err
		}
		filter.Layer = &l
	}

	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			return err
		}
		filter.Direction = &d
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			return err
		}
		filter.Category = &c
	}

	return commands.RunView(path, filter, os.Stdout)
}

func runExport(args []string) error {
	fs := newFlagSet("export", `lwm2m-log export - Export log file to JSONL or CSV format

Usage:
  lwm2m-log export [flags] <file.llog>

Flags:
`)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.StringP("output", "o", "", "Output file (default: stdout)")

	path, err := parseArgs(fs, args)
	if err == pflag.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}

	return commands.RunExport(path, *format, *output)
}

func runFilter(args []string) error {
	fs := newFlagSet("filter", `lwm2m-log filter - Filter log file and write to new file

Usage:
  lwm2m-log filter [flags] <file.llog>

Flags:
`)
	output := fs.StringP("output", "o", "", "Output file (required)")
	session := fs.String("session", "", "Filter by bootstrap session ID")
	remote := fs.String("remote", "", "Filter by remote address (host:port)")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (message, session, engine)")
	category := fs.String("category", "", "Filter by category (message, state, error)")

	path, err := parseArgs(fs, args)
	if err == pflag.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}

	if *output == "" {
		fs.Usage()
		return fmt.Errorf("output file (-o) required")
	}

	n, err := commands.RunFilter(path, commands.FilterOptions{
		Output:     *output,
		SessionID:  *session,
		RemoteAddr: *remote,
		TimeStart:  *timeStart,
		TimeEnd:    *timeEnd,
		Layer:      *layer,
		Category:   *category,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Filtered %d events to %s\n", n, *output)
	return nil
}

func runStats(args []string) error {
	fs := newFlagSet("stats", `lwm2m-log stats - Show statistics about the log file

Usage:
  lwm2m-log stats <file.llog>

`)

	path, err := parseArgs(fs, args)
	if err == pflag.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}

	return commands.RunStats(path, os.Stdout)
}
