package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/viant/afs/url"
	"github.com/viant/approvalflow"
	"github.com/viant/approvalflow/validator"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type options struct {
	configPath  string
	cycleStart  string
	metricsAddr string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "approvalflow",
		Short:         "Multi-step approval workflow engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (yaml or json)")

	validate := &cobra.Command{
		Use:   "validate <template>...",
		Short: "Validate workflow or appraisal template files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
	schedule := &cobra.Command{
		Use:   "schedule <appraisal-template>",
		Short: "Calculate appraisal phase dates for a cycle start date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context(), cmd.OutOrStdout(), args[0], opts.cycleStart)
		},
	}
	schedule.Flags().StringVar(&opts.cycleStart, "start", "", "cycle start date (YYYY-MM-DD), defaults to today")
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Run one SLA sweep over active instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), cmd.OutOrStdout(), opts.configPath)
		},
	}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic SLA sweep and expose metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	serve.Flags().StringVar(&opts.metricsAddr, "metrics-addr", ":9090", "metrics listen address, empty disables")
	root.AddCommand(validate, schedule, sweep, serve)
	return root
}

type validation struct {
	URL        string            `json:"url"`
	TemplateID string            `json:"templateId,omitempty"`
	Result     *validator.Result `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func runValidate(ctx context.Context, out io.Writer, URLs []string) error {
	srv, err := approvalflow.New()
	if err != nil {
		return err
	}
	defer srv.Shutdown(ctx)
	var ret []*validation
	invalid := 0
	for _, URL := range URLs {
		item := &validation{URL: URL}
		ret = append(ret, item)
		definition, err := srv.Templates().Import(ctx, location(URL))
		if err != nil {
			item.Error = err.Error()
			invalid++
			continue
		}
		item.TemplateID = definition.ID()
		if definition.Appraisal != nil {
			item.Result, err = srv.Templates().ValidateAppraisal(ctx, item.TemplateID)
		} else {
			item.Result, err = srv.Templates().Validate(ctx, item.TemplateID)
		}
		if err != nil {
			return err
		}
		if !item.Result.Valid {
			invalid++
		}
	}
	if err = writeJSON(out, ret); err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d templates are invalid", invalid, len(URLs))
	}
	return nil
}

func runSchedule(ctx context.Context, out io.Writer, URL, cycleStart string) error {
	start := time.Now().UTC().Truncate(24 * time.Hour)
	if cycleStart != "" {
		var err error
		if start, err = time.Parse(dateLayout, cycleStart); err != nil {
			return fmt.Errorf("invalid start date %q: %w", cycleStart, err)
		}
	}
	srv, err := approvalflow.New()
	if err != nil {
		return err
	}
	defer srv.Shutdown(ctx)
	definition, err := srv.Templates().Import(ctx, location(URL))
	if err != nil {
		return err
	}
	if definition.Appraisal == nil {
		return fmt.Errorf("%s is not an appraisal template", URL)
	}
	plan, err := srv.Templates().Schedule(ctx, definition.ID(), start)
	if err != nil {
		return err
	}
	return writeJSON(out, plan)
}

func runSweep(ctx context.Context, out io.Writer, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	srv, err := approvalflow.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Shutdown(ctx)
	report, err := srv.Sweeper().Sweep(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

func runServe(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	registry := prometheus.NewRegistry()
	srv, err := approvalflow.NewFromConfig(ctx, cfg, approvalflow.WithMetricsRegisterer(registry))
	if err != nil {
		return err
	}
	logger := srv.Logger()
	var server *http.Server
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
				stop()
			}
		}()
	}
	if err = srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("approvalflow started", zap.String("store", cfg.Store.Vendor), zap.Duration("sweepInterval", cfg.Sweep.Interval))
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	logger.Info("approvalflow stopping")
	return srv.Shutdown(shutdownCtx)
}

// location turns a relative local path into an absolute one.
func location(URL string) string {
	if !url.IsRelative(URL) {
		return URL
	}
	if abs, err := filepath.Abs(URL); err == nil {
		return abs
	}
	return URL
}

func writeJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
