package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xequation/xequation/pkg/config"
	"github.com/xequation/xequation/pkg/equation"
	"github.com/xequation/xequation/pkg/expr"
	"github.com/xequation/xequation/pkg/expr/script"
	"github.com/xequation/xequation/pkg/policy"
	"github.com/xequation/xequation/pkg/stores"
	"github.com/xequation/xequation/pkg/telemetry"
)

// app holds what every command needs after the config is read.
type app struct {
	cfg *config.Config
	tel *telemetry.Telemetry
	ctx context.Context
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	tel.StartMetricsServer()

	return &app{
		cfg: cfg,
		tel: tel,
		ctx: tel.WithContext(cmd.Context()),
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

func (a *app) newEngine() (*script.Engine, error) {
	opts := []script.Option{
		script.WithLogger(a.tel.Logger.NewComponentLogger("engine").Zerolog()),
		script.WithCacheSize(a.cfg.Engine.CacheSize),
		script.WithSearchPaths(a.cfg.Engine.SearchPaths...),
		script.WithMaxSteps(a.cfg.Engine.MaxSteps),
	}
	if len(a.cfg.Engine.Modules) > 0 {
		opts = append(opts, script.WithAllowedModules(a.cfg.Engine.Modules...))
	}
	return script.New(opts...)
}

func (a *app) newManager(engine *script.Engine) (*equation.Manager, error) {
	return equation.New(engine,
		equation.WithLogger(a.tel.Logger.NewComponentLogger("manager").Zerolog()),
		equation.WithMetrics(a.tel.Metrics),
	)
}

func (a *app) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: a.cfg.Store.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// checkPolicy lints wb and fails when a blocking violation is found. It
// returns a nil result when policies are disabled.
func (a *app) checkPolicy(ctx context.Context, wb *config.Workbook, engine *script.Engine) (*policy.Result, error) {
	if !a.cfg.Policy.Enabled {
		return nil, nil
	}

	op := telemetry.StartOperation(ctx, "workbook.policy", telemetry.AttrWorkbook.String(wb.Name))
	pe, err := policy.NewEngine(op.Logger.Zerolog(), policy.SettingsFrom(a.cfg.Policy))
	if err != nil {
		op.End(err)
		return nil, err
	}
	result, err := pe.EvaluateWorkbook(op.Ctx, wb, engine)
	if err != nil {
		op.End(err)
		return nil, err
	}

	for _, v := range result.Violations {
		a.tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		_ = a.tel.Events.PublishPolicyViolation(wb.Name, v.Policy, string(v.Severity), v.Message)
		zl := op.Logger.Zerolog()
		zl.Warn().
			Str("policy", v.Policy).
			Str("severity", string(v.Severity)).
			Str("equation", v.Equation).
			Msg(v.Message)
	}

	if blocking := result.Blocking(); len(blocking) > 0 {
		msgs := make([]string, len(blocking))
		for i, v := range blocking {
			msgs[i] = fmt.Sprintf("%s: %s", v.Policy, v.Message)
		}
		err = fmt.Errorf("workbook %s violates policy:\n  %s", wb.Name, strings.Join(msgs, "\n  "))
	}
	op.End(err)
	return result, err
}

// run replays wb into a fresh manager and evaluates it.
func (a *app) run(ctx context.Context, wb *config.Workbook) (*equation.Manager, error) {
	ctx = telemetry.WithWorkbookContext(ctx, wb.Name)

	engine, err := a.newEngine()
	if err != nil {
		telemetry.EndWorkbookContext(ctx, wb.Name, 0, err)
		return nil, err
	}
	if _, err := a.checkPolicy(ctx, wb, engine); err != nil {
		telemetry.EndWorkbookContext(ctx, wb.Name, 0, err)
		return nil, err
	}

	m, err := a.newManager(engine)
	if err != nil {
		telemetry.EndWorkbookContext(ctx, wb.Name, 0, err)
		return nil, err
	}
	stop := a.tel.Events.Bridge(m, wb.Name)
	defer stop()

	op := telemetry.StartOperation(ctx, "workbook.replay",
		telemetry.AttrWorkbook.String(wb.Name),
		attribute.Int("xeq.groups", len(wb.Groups)),
	)
	detachTrace := a.tel.Tracer.Bridge(op.Ctx, m)
	err = m.Import(wb.Statements())
	detachTrace()
	op.End(err)

	hits, misses := engine.CacheStats()
	a.tel.Metrics.SetParseCache(engine.CacheSize(), hits, misses)

	if err != nil {
		var mErr *equation.Error
		if errors.As(err, &mErr) {
			a.tel.Metrics.RecordError(string(mErr.Code))
		}
	}

	failed := countFailed(m)
	telemetry.EndWorkbookContext(ctx, wb.Name, failed, err)
	if err != nil {
		return nil, err
	}

	zl := op.Logger.Zerolog()
	zl.Debug().
		Int("equations", m.Len()).
		Int("failed", failed).
		Msg("Workbook evaluated")
	return m, nil
}

func countFailed(m *equation.Manager) int {
	n := 0
	for _, eq := range m.Equations() {
		if eq.Status().IsError() || eq.Status() == expr.StatusStale {
			n++
		}
	}
	return n
}

// loadAndRun loads the workbook file at path and runs it.
func (a *app) loadAndRun(path string) (*config.Workbook, *equation.Manager, error) {
	wb, err := config.LoadWorkbook(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := a.run(a.ctx, wb)
	if err != nil {
		return wb, nil, err
	}
	return wb, m, nil
}
