package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/simonbloom/vibogit-sub001/internal/devserver"
	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

// devdiag inspects a project's dev server configuration from the command
// line, using the same detection and diagnosis code as the desktop app.
func main() {
	var jsonOut bool

	root := &cobra.Command{
		Use:           "devdiag",
		Short:         "Inspect dev server configuration and health for a project",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit JSON instead of text")

	reader := devserver.NewConfigReader()

	detect := &cobra.Command{
		Use:   "detect <path>",
		Short: "Show the marker file and dev script configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := reader.ReadAgentsConfig(args[0])
			if err != nil {
				return err
			}
			script, err := reader.DetectDevServerConfig(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(map[string]any{"agents": agents, "script": script})
			}
			if agents.Found {
				fmt.Printf("marker file: %s (port %d)\n", agents.FilePath, agents.Port)
			} else {
				fmt.Println("marker file: not found")
			}
			if script == nil {
				fmt.Println("dev script: not found")
				return nil
			}
			fmt.Printf("dev script: %s %v (port %d", script.Command, script.Args, script.Port)
			if script.ExplicitPort > 0 {
				fmt.Print(", explicit")
			}
			fmt.Println(")")
			if agents.IsMonorepo {
				fmt.Println("warning: monorepo detected, the dev script may start multiple services")
			}
			return nil
		},
	}

	probe := &cobra.Command{
		Use:   "probe <port>",
		Short: "Check whether a local port accepts connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid port %q", args[0])
			}
			listening := devserver.IsPortListening(port)
			if jsonOut {
				return printJSON(map[string]any{"port": port, "listening": listening})
			}
			if listening {
				fmt.Printf("port %d is listening\n", port)
			} else {
				fmt.Printf("port %d is free\n", port)
			}
			return nil
		},
	}

	diagnose := &cobra.Command{
		Use:   "diagnose <path> [port]",
		Short: "Explain why the dev server is unreachable",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := 0
			if len(args) == 2 {
				p, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid port %q", args[1])
				}
				port = p
			}
			sup := devserver.NewSupervisor(logging.Nop())
			d := devserver.Diagnose(sup, reader, args[0], port)
			if jsonOut {
				return printJSON(d)
			}
			fmt.Printf("%s: %s\n", d.Code, d.Message)
			if d.Suggestion != "" {
				fmt.Printf("suggestion: %s\n", d.Suggestion)
			}
			return nil
		},
	}

	writePort := &cobra.Command{
		Use:   "write-port <path> <port>",
		Short: "Persist a dev server port to the marker file and dev script",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q", args[1])
			}
			if err := devserver.ValidatePort(port); err != nil {
				return err
			}
			if err := reader.WriteAgentsPort(args[0], port); err != nil {
				return err
			}
			if err := reader.WriteDevScriptPort(args[0], port); err != nil {
				fmt.Fprintf(os.Stderr, "dev script not updated: %v\n", err)
			}
			fmt.Printf("port %d written\n", port)
			return nil
		},
	}

	root.AddCommand(detect, probe, diagnose, writePort)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
