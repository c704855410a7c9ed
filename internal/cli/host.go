package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/client"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	transport "live-quiz-service/internal/transport/http"
)

// hostClient drives the coordinator's host endpoints.
type hostClient struct {
	baseURL string
	http    *http.Client
	out     io.Writer
}

// NewHostCmd groups the operator commands for running a session.
func NewHostCmd(configPath *string) *cobra.Command {
	var server string
	hc := &hostClient{http: &http.Client{Timeout: 30 * time.Second}}

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Control the live session (start, reveal, ranking, reset...)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			hc.baseURL = strings.TrimRight(cfg.Client.ServerURL, "/")
			if server != "" {
				hc.baseURL = strings.TrimRight(server, "/")
			}
			hc.out = cmd.OutOrStdout()
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&server, "server", "", "coordinator base URL (overrides client.server_url)")

	cmd.AddCommand(&cobra.Command{
		Use:   "start <questionId>",
		Short: "Open voting on a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid question id %q", args[0])
			}
			return hc.transition(cmd.Context(), "start", transport.StartRequest{QuestionID: id})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "next",
		Short: "Open voting on the next question in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return hc.transition(cmd.Context(), "next", nil)
		},
	})

	var force bool
	reveal := &cobra.Command{
		Use:   "reveal",
		Short: "Close voting, persist answers and show the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return hc.transition(cmd.Context(), "reveal", transport.RevealRequest{Force: force})
		},
	}
	reveal.Flags().BoolVar(&force, "force", false, "show the result even if persisting answers fails")
	cmd.AddCommand(reveal)

	cmd.AddCommand(&cobra.Command{
		Use:   "ranking",
		Short: "Show the ranking screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return hc.transition(cmd.Context(), "ranking", nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "waiting",
		Short: "Return everyone to the waiting screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return hc.transition(cmd.Context(), "waiting", nil)
		},
	})
	cmd.AddCommand(newDestructiveCmd(hc, "reset", "Delete all answers and zero every score"))
	cmd.AddCommand(newDestructiveCmd(hc, "purge", "Delete all answers and all participants"))
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print session state, answer progress and ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return hc.status(cmd.Context())
		},
	})
	return cmd
}

func newDestructiveCmd(hc *hostClient, verb, short string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   verb,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("%w: re-run with --yes to %s", domain.ErrConfirmationRequired, verb)
			}
			return hc.transition(cmd.Context(), verb, transport.ConfirmRequest{Confirm: true})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive operation")
	return cmd
}

func (h *hostClient) transition(ctx context.Context, verb string, body any) error {
	var state domain.SessionState
	if err := client.Do(ctx, h.http, http.MethodPost, h.baseURL+"/api/host/"+verb, body, &state); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "phase=%s question=%d revision=%d\n", state.Phase, state.QuestionID(), state.Revision)
	return nil
}

func (h *hostClient) status(ctx context.Context) error {
	var (
		progress app.Progress
		ranking  domain.Ranking
	)
	if err := client.Do(ctx, h.http, http.MethodGet, h.baseURL+"/api/host/progress", nil, &progress); err != nil {
		return err
	}
	if err := client.Do(ctx, h.http, http.MethodGet, h.baseURL+"/api/ranking", nil, &ranking); err != nil {
		return err
	}
	enc := json.NewEncoder(h.out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Progress app.Progress   `json:"progress"`
		Ranking  domain.Ranking `json:"ranking"`
	}{progress, ranking})
}
