package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/Data-Cellar/dss-sequence-example/internal/mockapi"
	"github.com/Data-Cellar/dss-sequence-example/internal/store"
	"github.com/spf13/cobra"
)

var (
	servePort    int
	serveDSSURL  string
	serveSelfURL string
	serveAPIKey  string
	serveStep    time.Duration
	serveDBPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve <dashboard|dss>",
	Short: "Run a mock service",
	Long: `Run one of the two mock services backing the optimization flow.

dashboard accepts tool requests, dispatches them to the DSS service, and
receives completion webhooks. dss simulates the decision support system:
accepted jobs advance through a fixed progress schedule and post a webhook
on completion.`,
	Example: `  dsseq serve dashboard --port 8001 --dss-url http://localhost:8002
  dsseq serve dss --port 8002 --api-key dss-backend-key --step 2s`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"dashboard", "dss"},
	RunE:      runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default: 8001 for dashboard, 8002 for dss)")
	serveCmd.Flags().StringVar(&serveDSSURL, "dss-url", "http://localhost:8002", "DSS base URL the dashboard dispatches jobs to")
	serveCmd.Flags().StringVar(&serveSelfURL, "self-url", "", "Base URL the DSS reaches the dashboard's webhooks on (default: http://localhost:<port>)")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "dss-backend-key", "Shared X-API-Key value; empty disables the check")
	serveCmd.Flags().DurationVar(&serveStep, "step", mockapi.DefaultStepDelay, "Delay between simulation progress steps")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "SQLite database path (default: in-memory)")
	registerCompletion(serveCmd, "db", fileCompletion)
}

func runServe(cmd *cobra.Command, args []string) error {
	internal.SetupLogger(logLevel)

	st, err := store.Open(serveDBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	service := args[0]
	port := servePort
	var handler http.Handler

	switch service {
	case "dashboard":
		if port == 0 {
			port = 8001
		}
		selfURL := serveSelfURL
		if selfURL == "" {
			selfURL = fmt.Sprintf("http://localhost:%d", port)
		}
		handler = mockapi.NewDashboard(mockapi.DashboardConfig{
			Store:   st,
			DSSURL:  serveDSSURL,
			APIKey:  serveAPIKey,
			SelfURL: selfURL,
		}).Router()
	case "dss":
		if port == 0 {
			port = 8002
		}
		handler = mockapi.NewDSS(mockapi.DSSConfig{
			Store:     st,
			APIKey:    serveAPIKey,
			StepDelay: serveStep,
		}).Router()
	default:
		return fmt.Errorf("unknown service %q (want dashboard or dss)", service)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", "service", service, "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "service", service)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
