package cmd

import (
	"strings"

	"github.com/medscan-console/internal/viewmodel"
	"github.com/spf13/cobra"
)

var consultCmd = &cobra.Command{
	Use:     "consult",
	Aliases: []string{"consultation"},
	Short:   "Multi-specialist consultations",
}

func newConsultations() *viewmodel.Consultations {
	return viewmodel.NewConsultations(console.client.Consultations, console.deps)
}

// openConsultation loads the list and selects id with its full log
func openConsultation(cmd *cobra.Command, id string) (*viewmodel.Consultations, error) {
	c := newConsultations()
	if err := c.Load(cmd.Context()); err != nil {
		return nil, screenError(err, c.Snapshot().LastError)
	}
	if err := c.Select(cmd.Context(), id); err != nil {
		return nil, screenError(err, notFoundOr(c.Snapshot().LastError, "consultation", id))
	}
	return c, nil
}

var consultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List consultations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newConsultations()
		if err := c.Load(cmd.Context()); err != nil {
			return screenError(err, c.Snapshot().LastError)
		}
		console.out.consultationRows(c.Snapshot().Items)
		return nil
	},
}

var consultCreateCmd = &cobra.Command{
	Use:   "create <case description>",
	Short: "Open a consultation for a case",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newConsultations()
		if _, err := c.Create(cmd.Context(), strings.Join(args, " ")); err != nil {
			return screenError(err, c.Snapshot().LastError)
		}
		console.out.consultation(c.Snapshot().Selected)
		return nil
	},
}

var consultShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a consultation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConsultation(cmd, args[0])
		if err != nil {
			return err
		}
		console.out.consultation(c.Snapshot().Selected)
		return nil
	},
}

var consultSendCmd = &cobra.Command{
	Use:   "send <id> <message>",
	Short: "Post a message to a consultation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConsultation(cmd, args[0])
		if err != nil {
			return err
		}
		before := len(c.Snapshot().Messages())

		c.SetMessage(strings.Join(args[1:], " "))
		if err := c.SendMessage(cmd.Context()); err != nil {
			return screenError(err, c.Snapshot().LastError)
		}
		printNewConsultationMessages(c.Snapshot(), before)
		return nil
	},
}

var consultStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Ask the specialist panel to start reviewing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConsultation(cmd, args[0])
		if err != nil {
			return err
		}
		before := len(c.Snapshot().Messages())
		if err := c.Start(cmd.Context()); err != nil {
			return screenError(err, c.Snapshot().LastError)
		}
		printNewConsultationMessages(c.Snapshot(), before)
		return nil
	},
}

var consultAutoCompleteCmd = &cobra.Command{
	Use:   "auto-complete <id>",
	Short: "Run the consultation through to the final summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConsultation(cmd, args[0])
		if err != nil {
			return err
		}
		before := len(c.Snapshot().Messages())
		if err := c.AutoComplete(cmd.Context()); err != nil {
			return screenError(err, c.Snapshot().LastError)
		}
		printNewConsultationMessages(c.Snapshot(), before)
		return nil
	},
}

var consultWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Follow a consultation live until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConsultation(cmd, args[0])
		if err != nil {
			return err
		}
		s := c.Snapshot()
		console.out.consultation(s.Selected)
		shown := len(s.Messages())

		console.out.hint("Watching for new messages, press Ctrl+C to stop")
		err = c.Follow(cmd.Context(), func(s viewmodel.ConsultationState) {
			printNewConsultationMessages(s, shown)
			shown = len(s.Messages())
		})
		return screenError(err, c.Snapshot().LastError)
	},
}

func printNewConsultationMessages(s viewmodel.ConsultationState, from int) {
	msgs := s.Messages()
	if from > len(msgs) {
		from = 0
	}
	for _, m := range msgs[from:] {
		console.out.consultationMessage(m, false)
	}
	if s.Selected != nil {
		console.out.field("Stage", s.Selected.Stage)
	}
}

func init() {
	consultCmd.AddCommand(
		consultListCmd,
		consultCreateCmd,
		consultShowCmd,
		consultSendCmd,
		consultStartCmd,
		consultAutoCompleteCmd,
		consultWatchCmd,
	)
}
