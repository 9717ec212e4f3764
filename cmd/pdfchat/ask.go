package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pdfchat/internal/chain"
	"github.com/fyrsmithlabs/pdfchat/internal/tui"
)

// demoQuestions are asked when ask is run without arguments. The second one
// only makes sense with the first turn in the history.
var demoQuestions = []string{
	"What is the capital of UK?",
	"What is the population of the capital?",
}

func newAskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [questions...]",
		Short: "Ask questions in order within one conversation",
		Long: `Build the pipeline once and ask each question in turn within a single
conversation, so later questions can refer to earlier answers.

Examples:
  # Run the built-in two-question demo
  pdfchat ask --pdf ./materials/doc.pdf

  # Ask your own follow-up questions
  pdfchat ask "What are file type associations?" "How do I change one?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = demoQuestions
			}
			return runWithApp(cmd, setupOptions{}, func(ctx context.Context, rt *runtime, s *chain.Session) error {
				out := cmd.OutOrStdout()
				for _, q := range args {
					answer, err := s.Ask(ctx, q)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, answer.Text)
					if showSources {
						printSources(out, answer)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "print the chunks each answer was grounded on")
	return cmd
}

func newChatCmd() *cobra.Command {
	var useTUI bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively about the document",
		Long: `Start an interactive conversation. Each line is a question; answers keep
the conversation history. A failed question can simply be asked again.

Type "exit" or send EOF to leave. With --tui a full-screen interface is
used instead, where Esc cancels the question being answered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, setupOptions{quiet: useTUI}, func(ctx context.Context, rt *runtime, s *chain.Session) error {
				if useTUI {
					p := tea.NewProgram(tui.NewModel(s, rt.cfg.PDFDocument),
						tea.WithContext(ctx),
						tea.WithAltScreen(),
						tea.WithInput(cmd.InOrStdin()),
						tea.WithOutput(cmd.OutOrStdout()),
					)
					_, err := p.Run()
					if errors.Is(err, tea.ErrProgramKilled) {
						return nil
					}
					return err
				}
				return repl(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), s)
			})
		},
	}
	cmd.Flags().BoolVar(&useTUI, "tui", false, "use the full-screen interface")
	return cmd
}

// repl reads questions line by line. Pipeline failures are reported and the
// loop continues; only input errors and cancellation end it.
func repl(ctx context.Context, in io.Reader, out io.Writer, s *chain.Session) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch q {
		case "":
			continue
		case "exit", "quit", ":q":
			return nil
		}

		answer, err := s.Ask(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, answer.Text)
	}
}

// runWithApp performs setup, builds the pipeline, optionally starts the
// HTTP endpoint and runs fn with a fresh session.
func runWithApp(cmd *cobra.Command, so setupOptions, fn func(ctx context.Context, rt *runtime, s *chain.Session) error) error {
	ctx := cmd.Context()
	rt, err := setup(cmd, so)
	if err != nil {
		return err
	}
	defer rt.close()

	a, err := rt.build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stop, err := rt.serve(ctx, a)
	if err != nil {
		return err
	}
	defer stop()

	return fn(ctx, rt, a.Chain.NewSession())
}

func printSources(out io.Writer, answer *chain.Answer) {
	for _, m := range answer.Sources {
		fmt.Fprintf(out, "  * %s\n", tui.FormatSource(m, 80))
	}
}
