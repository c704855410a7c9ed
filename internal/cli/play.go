package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/client"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logging"
	transport "live-quiz-service/internal/transport/http"
)

// NewPlayCmd runs a terminal participant.
func NewPlayCmd(configPath *string) *cobra.Command {
	var name, server string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the quiz as a participant from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if server != "" {
				cfg.Client.ServerURL = server
			}
			return runPlay(cmd.Context(), cfg, name, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (1-20 characters)")
	cmd.Flags().StringVar(&server, "server", "", "coordinator base URL (overrides client.server_url)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runPlay(ctx context.Context, cfg config.Config, name string, in io.Reader, out io.Writer) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	c := client.New(cfg.Client.ServerURL, client.NewFileIdentityStore(cfg.Client.IdentityFile), logger)
	me, err := c.Register(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "joined as %s (%s)\n", me.DisplayName, me.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() {
		runErr <- c.Run(ctx, func(u client.Update) { render(out, c, u) })
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case err := <-runErr:
			return err
		case line, ok := <-lines:
			if !ok || line == "q" || line == "quit" {
				cancel()
				return <-runErr
			}
			option, err := strconv.Atoi(line)
			if err != nil {
				fmt.Fprintln(out, "type 1-4 to answer, q to quit")
				continue
			}
			if _, err := c.Answer(option); err != nil {
				fmt.Fprintf(out, "cannot answer: %v\n", err)
			}
		}
	}
}

func render(out io.Writer, c *client.Client, u client.Update) {
	switch u.Kind {
	case client.UpdateState:
		renderState(out, c, u.State)
	case client.UpdateSubmitted:
		if u.Submitted.Correct {
			fmt.Fprintf(out, "answer %d sent: correct, +%d\n", u.Submitted.Option, u.Submitted.Points)
		} else {
			fmt.Fprintf(out, "answer %d sent\n", u.Submitted.Option)
		}
	case client.UpdateError:
		fmt.Fprintf(out, "server: %s\n", u.Message)
	}
}

func renderState(out io.Writer, c *client.Client, s transport.StatePayload) {
	switch s.Phase {
	case domain.PhaseWaiting:
		fmt.Fprintln(out, "waiting for the host...")
	case domain.PhaseVoting:
		if s.Question == nil {
			return
		}
		fmt.Fprintf(out, "\nQ%d: %s (%.0fs left)\n", s.Question.Ordinal, s.Question.Prompt, c.Remaining().Seconds())
		for i, opt := range s.Question.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
		}
	case domain.PhaseResult:
		if s.Question != nil && s.Question.CorrectIndex != nil {
			fmt.Fprintf(out, "answer: %d) %s\n", *s.Question.CorrectIndex, s.Question.Options[*s.Question.CorrectIndex-1])
		}
	case domain.PhaseRanking:
		if s.Ranking == nil {
			return
		}
		fmt.Fprintln(out, "ranking:")
		for _, e := range s.Ranking.Entries {
			fmt.Fprintf(out, "  %2d. %-20s %d\n", e.Rank, e.DisplayName, e.Score)
		}
	}
}
