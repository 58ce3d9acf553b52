package cmd

import (
	"strings"

	"github.com/medscan-console/internal/viewmodel"
	"github.com/spf13/cobra"
)

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Ask questions about medical reports",
}

func newQA() *viewmodel.QA {
	return viewmodel.NewQA(console.client.QA, console.deps)
}

var qaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List Q&A sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := newQA()
		if err := q.Load(cmd.Context()); err != nil {
			return screenError(err, q.Snapshot().LastError)
		}
		console.out.qaRows(q.Snapshot().Items)
		return nil
	},
}

var qaCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Start a Q&A session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := newQA()
		if _, err := q.Create(cmd.Context(), strings.Join(args, " ")); err != nil {
			return screenError(err, q.Snapshot().LastError)
		}
		console.out.qaSession(q.Snapshot().Selected)
		return nil
	},
}

func openQA(cmd *cobra.Command, id string) (*viewmodel.QA, error) {
	q := newQA()
	if err := q.Load(cmd.Context()); err != nil {
		return nil, screenError(err, q.Snapshot().LastError)
	}
	if err := q.Select(cmd.Context(), id); err != nil {
		return nil, screenError(err, notFoundOr(q.Snapshot().LastError, "Q&A session", id))
	}
	return q, nil
}

var qaShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a Q&A session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQA(cmd, args[0])
		if err != nil {
			return err
		}
		console.out.qaSession(q.Snapshot().Selected)
		return nil
	},
}

var qaAskCmd = &cobra.Command{
	Use:   "ask <id> <question>",
	Short: "Ask a question in a Q&A session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQA(cmd, args[0])
		if err != nil {
			return err
		}
		before := len(q.Snapshot().Messages())

		q.SetQuestion(strings.Join(args[1:], " "))
		if err := q.Ask(cmd.Context()); err != nil {
			return screenError(err, q.Snapshot().LastError)
		}

		msgs := q.Snapshot().Messages()
		if before > len(msgs) {
			before = 0
		}
		for _, m := range msgs[before:] {
			console.out.qaMessage(m)
		}
		return nil
	},
}

func init() {
	qaCmd.AddCommand(qaListCmd, qaCreateCmd, qaShowCmd, qaAskCmd)
}
