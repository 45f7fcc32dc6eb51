// Command board is a scriptable CLI over the task board and its message
// queue, printing single-line JSON to stdout on success. It mirrors
// scripts/board.py's subcommand set so agent containers can shell out to it
// without a server dependency.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tgruben-circuit/agentfleet/board"
)

var boardDir string

func main() {
	root := &cobra.Command{
		Use:           "board",
		Short:         "Task board CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&boardDir, "board-dir", ".drive/agents/board", "board storage root")

	root.AddCommand(
		addCmd(),
		listCmd(),
		claimCmd(),
		completeCmd(),
		failCmd(),
		messageCmd(),
		messagesCmd(),
		markReadCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openBoard() (*board.Board, error) {
	return board.New(boardDir)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.Encode(v) //nolint:errchkjson
}

func addCmd() *cobra.Command {
	var priority int
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Create a new open task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBoard()
			if err != nil {
				return err
			}
			t, err := b.Add(args[0], priority)
			if err != nil {
				return err
			}
			printJSON(map[string]string{"task_id": t.ID, "status": "created"})
			return nil
		},
	}
	cmd.Flags().IntVar(&priority, "priority", 1, "task priority, higher claims first")
	return cmd
}

func listCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBoard()
			if err != nil {
				return err
			}
			tasks, err := b.List(board.Status(status))
			if err != nil {
				return err
			}
			printJSON(tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (open/locked/done/failed)")
	return cmd
}

func claimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <agent_id>",
		Short: "Claim the highest-priority open task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBoard()
			if err != nil {
				return err
			}
			t, ok, err := b.Claim(args[0])
			if err != nil {
				return err
			}
			if !ok {
				printJSON(map[string]any{"task": nil})
				return nil
			}
			printJSON(map[string]any{"task": t})
			return nil
		},
	}
}

func completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <task_id> <agent_id>",
		Short: "Mark a locked task done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBoard()
			if err != nil {
				return err
			}
			if _, err := b.Complete(args[0], args[1]); err != nil {
				return err
			}
			printJSON(map[string]string{"status": "completed"})
			return nil
		},
	}
}

func failCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fail <task_id> <agent_id> <reason>",
		Short: "Mark a locked task failed with a reason",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBoard()
			if err != nil {
				return err
			}
			if _, err := b.Fail(args[0], args[1], args[2]); err != nil {
				return err
			}
			printJSON(map[string]string{"status": "failed"})
			return nil
		},
	}
}

func messageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message <from_role> <to_role> <text>",
		Short: "Post a message to a role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBoard()
			if err != nil {
				return err
			}
			m, err := b.PostMessage(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			printJSON(map[string]string{"msg_id": m.ID})
			return nil
		},
	}
}

func messagesCmd() *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "messages <role>",
		Short: "List messages addressed to a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBoard()
			if err != nil {
				return err
			}
			msgs, err := b.Messages(args[0], unread)
			if err != nil {
				return err
			}
			printJSON(msgs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only return unread messages")
	return cmd
}

func markReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-read <msg_id>",
		Short: "Mark a message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBoard()
			if err != nil {
				return err
			}
			if _, err := b.MarkRead(args[0]); err != nil {
				return err
			}
			printJSON(map[string]string{"status": "read"})
			return nil
		},
	}
}
