package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/forgeview/internal/mockbackend"
	"pkt.systems/pslog"
)

func newMockBackendCmd() *cobra.Command {
	var addr string
	var stepDelay time.Duration
	var failBuild bool
	var failRemediation bool
	var previewURL string
	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Serve a scripted builder backend for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			opts := mockbackend.Options{
				StepDelay:       stepDelay,
				FailRemediation: failRemediation,
				PreviewURL:      previewURL,
				Logger:          logger,
			}
			if failBuild {
				opts.Script = mockbackend.FailingScript()
			}
			backend := mockbackend.New(opts)

			server := &http.Server{
				Addr:              addr,
				Handler:           backend.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("mock backend listening", "addr", addr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
				logger.Info("mock backend stopped")
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8799", "listen address")
	cmd.Flags().DurationVar(&stepDelay, "step-delay", 250*time.Millisecond, "pause between scripted events")
	cmd.Flags().BoolVar(&failBuild, "fail-build", false, "replay a failing build script")
	cmd.Flags().BoolVar(&failRemediation, "fail-remediation", false, "refuse remediation requests")
	cmd.Flags().StringVar(&previewURL, "preview-url", "", "preview url reported to clients")
	return cmd
}
