package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triviabluff/client-go/internal/client"
	"github.com/triviabluff/client-go/internal/state"
	"github.com/triviabluff/client-go/internal/store"
	"github.com/triviabluff/client-go/internal/transport"
)

// buildClient wires store, transport, and dispatcher for one session.
func buildClient(ctx context.Context, cfg *Config, log *zap.Logger) *client.Client {
	st := store.New(ctx, log)
	tr := transport.New(cfg.server, st, log, transport.WithRetryPolicy(transport.RetryPolicy{
		Interval:    cfg.reconnectInterval,
		MaxAttempts: cfg.reconnectAttempts,
	}))
	return client.New(cfg.server, st, tr, log)
}

func newHostCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Create a session as game master and stream its events.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.name == "" {
				return fmt.Errorf("--name is required to host")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := cfg.logger()
			c := buildClient(ctx, cfg, log)
			defer c.Close()

			resp, err := c.CreateSession(ctx, cfg.name)
			if err != nil {
				return err
			}
			fmt.Printf("session created: %s\n", resp.SessionID)

			if cfg.qrFile != "" {
				joinURL := fmt.Sprintf("%s/join/%s", cfg.server, resp.SessionID)
				if err := qrcode.WriteFile(joinURL, qrcode.Medium, 256, cfg.qrFile); err != nil {
					log.Warn("failed to write join QR code", zap.Error(err))
				} else {
					fmt.Printf("join QR code written to %s\n", cfg.qrFile)
				}
			}

			return streamSnapshots(ctx, c)
		},
	}
}

func newJoinCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join an existing session by its code and stream its events.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.name == "" {
				return fmt.Errorf("--name is required to join")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := buildClient(ctx, cfg, cfg.logger())
			defer c.Close()

			resp, err := c.JoinSession(ctx, args[0], cfg.name)
			if err != nil {
				return err
			}
			fmt.Printf("joined session %s as %s\n", args[0], resp.PlayerID)

			return streamSnapshots(ctx, c)
		},
	}
}

// streamSnapshots prints every meaningful state change until the context
// is cancelled.
func streamSnapshots(ctx context.Context, c *client.Client) error {
	snaps, cancel := c.Store().Watch("cli", 16)
	defer cancel()

	var last state.State
	for {
		select {
		case <-ctx.Done():
			c.Leave()
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			printDelta(last, snap.State)
			last = snap.State
		}
	}
}

func printDelta(prev, cur state.State) {
	if cur.Phase != prev.Phase {
		fmt.Printf("phase: %s\n", cur.Phase)
	}
	if len(cur.Players) != len(prev.Players) {
		for _, p := range cur.Players {
			found := false
			for _, q := range prev.Players {
				if q.ID == p.ID {
					found = true
					break
				}
			}
			if !found {
				fmt.Printf("player joined: %s\n", p.Pseudonym)
			}
		}
	}
	if cur.CurrentQuestion != nil && (prev.CurrentQuestion == nil || cur.CurrentQuestion.Text != prev.CurrentQuestion.Text) {
		fmt.Printf("question: %s\n", cur.CurrentQuestion.Text)
	}
	if cur.Phase == state.PhaseVoting && len(cur.Answers) > 0 && len(prev.Answers) == 0 {
		fmt.Println("answers:")
		for i, a := range cur.Answers {
			fmt.Printf("  %d. %s\n", i+1, a)
		}
	}
	if cur.Results != nil && prev.Results == nil {
		fmt.Printf("correct answer: %s\n", cur.Results.CorrectAnswer)
		for answer, votes := range cur.Results.VoteCounts {
			fmt.Printf("  %q got %d vote(s)\n", answer, votes)
		}
	}
	if cur.AutoProgress != nil && (prev.AutoProgress == nil || cur.AutoProgress.Remaining != prev.AutoProgress.Remaining) {
		fmt.Printf("auto mode: %s, %ds remaining\n", cur.AutoProgress.Phase, cur.AutoProgress.Remaining)
	}
	if cur.Err != "" && cur.Err != prev.Err {
		fmt.Printf("error: %s\n", cur.Err)
	}
	if cur.Connected != prev.Connected {
		if cur.Connected {
			fmt.Println("connected")
		} else {
			fmt.Println("disconnected, reconnecting...")
		}
	}
}
