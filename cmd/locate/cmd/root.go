// Package cmd implements the locate CLI commands.
//
// A root command dispatches to subcommands (run, check); each subcommand
// parses its own flags with pflag.
package cmd

import (
	"fmt"
	"io"
	"os"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// Command represents a CLI command.
type Command struct {
	Name  string
	Short string
	Long  string
	Usage string
	Run   func(args []string) error
}

var rootCmd = struct {
	Long  string
	Usage string
	Subs  []*Command
}{
	Long: `locate shows the device's coordinates once location permissions are
granted and location services are available.

The terminal host stands in for the phone: permission and error dialogs
are prompts, and fixes come from a configured source (static, NMEA
serial GPS, Google geolocation, or a chain of them).

Use "locate <command> --help" for more information about a command.`,
	Usage: "locate <command> [flags]",
}

// Commands registered with the CLI.
var commands = make(map[string]*Command)

// RegisterCommand adds a command to the CLI.
func RegisterCommand(cmd *Command) {
	commands[cmd.Name] = cmd
	rootCmd.Subs = append(rootCmd.Subs, cmd)
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return execute(os.Args[1:], os.Stdout)
}

func execute(args []string, out io.Writer) error {
	if len(args) == 0 {
		printHelp(out)
		return nil
	}

	switch args[0] {
	case "-h", "--help", "help":
		printHelp(out)
		return nil
	case "-v", "--version", "version":
		fmt.Fprintf(out, "locate version %s (built %s)\n", Version, BuildTime)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printHelp(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}

	for _, arg := range args[1:] {
		if arg == "-h" || arg == "--help" || arg == "help" {
			printCommandHelp(out, cmd)
			return nil
		}
	}

	return cmd.Run(args[1:])
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, rootCmd.Long)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintf(out, "  %s\n", rootCmd.Usage)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, sub := range rootCmd.Subs {
		fmt.Fprintf(out, "  %-14s %s\n", sub.Name, sub.Short)
	}
	fmt.Fprintf(out, "  %-14s %s\n", "version", "Show version information")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  locate run                          Run with locate.yaml in the current directory")
	fmt.Fprintln(out, "  locate run --source nmea --grant fine")
	fmt.Fprintln(out, "  locate check --config ./locate.yaml Show resolved settings and one fix")
}

func printCommandHelp(out io.Writer, cmd *Command) {
	fmt.Fprintln(out, cmd.Long)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintf(out, "  %s\n", cmd.Usage)
}
