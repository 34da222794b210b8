package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triviabluff/client-go/internal/fakeserver"
)

const sampleQuestions = `question,answer,category
What is the capital of France?,Paris,Geography
Which planet is known as the red planet?,Mars,Science
In which year did the Berlin Wall fall?,1989,History
What is the largest mammal on Earth?,Blue whale,Science
Which artist painted the Mona Lisa?,Leonardo da Vinci,Art
`

func newDemoCmd(cfg *Config) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a local stand-in game server with a sample question set.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := cfg.logger()
			srv := fakeserver.New(ctx, log)

			set, err := srv.Questions().ParseCSV(strings.NewReader(sampleQuestions), "sample.csv")
			if err != nil {
				return err
			}
			log.Info("seeded sample question set", zap.String("set_id", set.ID))

			httpSrv := &http.Server{
				Addr:              bind,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ln, err := net.Listen("tcp", bind)
			if err != nil {
				return err
			}
			fmt.Printf("demo server listening on http://%s (question set %s)\n", ln.Addr(), set.ID)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&bind, "bind", "b", "127.0.0.1:8000", "address to serve the demo backend on")
	return cmd
}
