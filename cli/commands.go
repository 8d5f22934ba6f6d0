package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/client"
)

// Названия стадий в сообщениях об ошибках
const (
	stageMaterials = "fetching materials"
	stageVendors   = "fetching vendors"
	stageLoad      = "loading data"
	stageStatus    = "fetching load status"
	stageFilter    = "fetching filtered data"
	stageTransform = "transforming data"
	stageForecast  = "forecasting data"
	stageWatch     = "watching pipeline events"
	stageSession   = "restoring session"
	stageSave      = "saving session"
)

// options - общие флаги команд
type options struct {
	server      string
	sessionPath string
	timeout     time.Duration
	out         io.Writer
}

// forecastFlags - необязательные параметры прогноза
type forecastFlags struct {
	days      int
	period    int
	shift     int
	method    string
	saveChart string
}

func stageError(stage string, err error) error {
	return fmt.Errorf("An error occurred while %s: %w", stage, err)
}

func defaultSessionPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "salesctl", "session.snappy")
}

func defaultServer() string {
	if url := os.Getenv("SF_SERVER_URL"); url != "" {
		return url
	}
	return "http://127.0.0.1:5000"
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	root := &cobra.Command{
		Use:           "salesctl",
		Short:         "Sales expiry forecast pipeline dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `salesctl drives the filter → transform → forecast pipeline of the forecast service.

Each stage reads the last successful result of the previous one from the
session file, so stages can be run as separate invocations:
  salesctl load
  salesctl filter -m BUN -v 210094
  salesctl transform
  salesctl forecast --days 7`,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", defaultServer(), "Forecast service URL (or set SF_SERVER_URL env)")
	root.PersistentFlags().StringVar(&opts.sessionPath, "session", defaultSessionPath(), "Session snapshot file")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Request timeout")

	root.AddCommand(
		newMaterialsCmd(opts),
		newVendorsCmd(opts),
		newLoadCmd(opts),
		newStatusCmd(opts),
		newFilterCmd(opts),
		newTransformCmd(opts),
		newForecastCmd(opts),
		newRunCmd(opts),
		newWatchCmd(opts),
		newResetCmd(opts),
	)
	return root
}

func (o *options) client() *client.Client {
	return client.New(o.server, nil)
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

// withSession загружает сессию, выполняет fn и сохраняет сессию.
// Неудачная стадия не меняет снимков, поэтому результаты предыдущих стадий сохраняются и при ошибке.
func (o *options) withSession(fn func(s *client.Session) error) error {
	session, err := client.LoadSession(o.sessionPath, o.client())
	if err != nil {
		return stageError(stageSession, err)
	}
	runErr := fn(session)
	if err := session.Save(o.sessionPath); err != nil && runErr == nil {
		return stageError(stageSave, err)
	}
	return runErr
}

func newMaterialsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "materials",
		Short: "List material names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			materials, err := opts.client().Materials(ctx)
			if err != nil {
				return stageError(stageMaterials, err)
			}
			for _, m := range materials {
				fmt.Fprintln(opts.out, m)
			}
			return nil
		},
	}
}

func newVendorsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "vendors",
		Short: "List Sold To Party ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			vendors, err := opts.client().Vendors(ctx)
			if err != nil {
				return stageError(stageVendors, err)
			}
			for _, v := range vendors {
				fmt.Fprintln(opts.out, strconv.FormatInt(v, 10))
			}
			return nil
		},
	}
}

func newLoadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load workbooks into the service store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			return opts.withSession(func(s *client.Session) error {
				return runLoad(ctx, opts, s)
			})
		},
	}
}

func runLoad(ctx context.Context, opts *options, s *client.Session) error {
	status, err := s.Load(ctx)
	if err != nil {
		return stageError(stageLoad, err)
	}
	fmt.Fprintf(opts.out, "Data loaded: %d record(s)\n", status.Records)
	return nil
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest load run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			run, err := opts.client().LoadStatus(ctx)
			if err != nil {
				return stageError(stageStatus, err)
			}
			client.RenderLoadRun(opts.out, run)
			return nil
		},
	}
}

// filterFlags - параметры стадии фильтрации
type filterFlags struct {
	material string
	vendor   int64
	file     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.material, "material", "m", "", "Material name")
	cmd.Flags().Int64VarP(&f.vendor, "vendor", "v", 0, "Sold To Party id")
	cmd.Flags().StringVar(&f.file, "file", "", "Workbook path inside the service data directory")
}

func newFilterCmd(opts *options) *cobra.Command {
	flags := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter sales rows by material and vendor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			return opts.withSession(func(s *client.Session) error {
				return runFilter(ctx, opts, s, flags)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func runFilter(ctx context.Context, opts *options, s *client.Session, flags *filterFlags) error {
	records, err := s.Filter(ctx, flags.material, flags.vendor, flags.file)
	if err != nil {
		return stageError(stageFilter, err)
	}
	client.RenderFiltered(opts.out, records)
	return nil
}

func newTransformCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Aggregate the filtered rows by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			return opts.withSession(func(s *client.Session) error {
				return runTransform(ctx, opts, s)
			})
		},
	}
}

func runTransform(ctx context.Context, opts *options, s *client.Session) error {
	aggregated, err := s.Transform(ctx)
	if err != nil {
		return stageError(stageTransform, err)
	}
	client.RenderAggregated(opts.out, aggregated)
	return nil
}

func (f *forecastFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.days, "days", 7, "Forecast horizon in days")
	cmd.Flags().IntVar(&f.period, "period", 4, "Seasonal period")
	cmd.Flags().IntVar(&f.shift, "shift", -4, "Expiry shift offset in aggregated rows")
	cmd.Flags().StringVar(&f.method, "method", "", "Forecast method: auto, holt_winters or linear")
	cmd.Flags().StringVar(&f.saveChart, "save-chart", "", "Save the forecast chart PNG to this file")
}

// request заполняет только явно заданные параметры, остальные берутся из настроек сервиса
func (f *forecastFlags) request(cmd *cobra.Command) models.ForecastRequest {
	var req models.ForecastRequest
	if cmd.Flags().Changed("days") {
		req.ForecastDays = &f.days
	}
	if cmd.Flags().Changed("period") {
		req.SeasonalPeriod = &f.period
	}
	if cmd.Flags().Changed("shift") {
		req.ShiftOffset = &f.shift
	}
	req.Method = f.method
	return req
}

func newForecastCmd(opts *options) *cobra.Command {
	flags := &forecastFlags{}
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast expired, shelved and net quantities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			return opts.withSession(func(s *client.Session) error {
				return runForecast(ctx, cmd, opts, s, flags)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func runForecast(ctx context.Context, cmd *cobra.Command, opts *options, s *client.Session, flags *forecastFlags) error {
	c := opts.client()
	result, err := s.RunForecast(ctx, flags.request(cmd))
	if err != nil {
		return stageError(stageForecast, err)
	}
	client.RenderForecast(opts.out, result, c.ImageURL(result.ImageURL))

	if flags.saveChart != "" {
		png, err := c.Image(ctx, result.ImageURL)
		if err != nil {
			return stageError(stageForecast, err)
		}
		if err := os.WriteFile(flags.saveChart, png, 0o644); err != nil {
			return stageError(stageForecast, err)
		}
		fmt.Fprintf(opts.out, "\nChart saved to %s\n", flags.saveChart)
	}
	return nil
}

func newRunCmd(opts *options) *cobra.Command {
	filter := &filterFlags{}
	forecast := &forecastFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run load, filter, transform and forecast in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			return opts.withSession(func(s *client.Session) error {
				// с --file данные читаются из книги напрямую
				if filter.file == "" {
					if err := runLoad(ctx, opts, s); err != nil {
						return err
					}
				}
				if err := runFilter(ctx, opts, s, filter); err != nil {
					return err
				}
				if err := runTransform(ctx, opts, s); err != nil {
					return err
				}
				return runForecast(ctx, cmd, opts, s, forecast)
			})
		},
	}
	filter.register(cmd)
	forecast.register(cmd)
	return cmd
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print pipeline stage events as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := opts.client().Watch(ctx, func(event models.StageEvent) {
				client.RenderEvent(opts.out, event)
			})
			if err != nil {
				return stageError(stageWatch, err)
			}
			return nil
		},
	}
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget all stage snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := client.LoadSession(opts.sessionPath, opts.client())
			if err != nil {
				// поврежденный файл перезаписывается пустой сессией
				session = client.NewSession(opts.client())
			}
			session.Reset()
			if err := session.Save(opts.sessionPath); err != nil {
				return stageError(stageSave, err)
			}
			fmt.Fprintln(opts.out, "Session cleared")
			return nil
		},
	}
}
