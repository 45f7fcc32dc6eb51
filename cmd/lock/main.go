// Command lock is a scriptable CLI over the ownership-lock protocol,
// printing single-line JSON to stdout on success. It mirrors scripts/lock.py's
// subcommand set.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tgruben-circuit/agentfleet/lock"
)

var boardDir string

func main() {
	root := &cobra.Command{
		Use:           "lock",
		Short:         "Lock protocol CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&boardDir, "board-dir", ".drive/agents/board", "board storage root (lock files live under <root>/locks)")

	root.AddCommand(
		acquireCmd(),
		releaseCmd(),
		refreshCmd(),
		listCmd(),
		cleanupCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*lock.Store, error) {
	return lock.New(boardDir)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.Encode(v) //nolint:errchkjson
}

func acquireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "acquire <task_id> <agent_id>",
		Short: "Acquire a task lock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			ok, err := s.Acquire(args[0], args[1])
			if err != nil {
				return err
			}
			printJSON(map[string]bool{"acquired": ok})
			return nil
		},
	}
}

func releaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <task_id> <agent_id>",
		Short: "Release a task lock owned by agent_id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			ok, err := s.Release(args[0], args[1])
			if err != nil {
				return err
			}
			printJSON(map[string]bool{"released": ok})
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <task_id> <agent_id>",
		Short: "Refresh a task lock's heartbeat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			ok, err := s.Refresh(args[0], args[1])
			if err != nil {
				return err
			}
			printJSON(map[string]bool{"refreshed": ok})
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all active locks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			records, err := s.List()
			if err != nil {
				return err
			}
			printJSON(records)
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	var maxAge int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Reap locks whose heartbeat is older than max-age seconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			cleaned, err := s.CleanupStale(maxAge)
			if err != nil {
				return err
			}
			printJSON(map[string][]string{"cleaned": cleaned})
			return nil
		},
	}
	cmd.Flags().IntVar(&maxAge, "max-age", 7200, "max lock age in seconds before reaping")
	return cmd
}
