package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	apierrands "github.com/kilianp07/errandplan/api/errands"
	apischedule "github.com/kilianp07/errandplan/api/schedule"
	"github.com/kilianp07/errandplan/app/plugins"
	"github.com/kilianp07/errandplan/config"
	"github.com/kilianp07/errandplan/core/agenda"
	"github.com/kilianp07/errandplan/core/calendar"
	"github.com/kilianp07/errandplan/core/estimate"
	"github.com/kilianp07/errandplan/core/events"
	"github.com/kilianp07/errandplan/core/ledger"
	coremetrics "github.com/kilianp07/errandplan/core/metrics"
	"github.com/kilianp07/errandplan/core/metrics/usage"
	"github.com/kilianp07/errandplan/core/model"
	coremon "github.com/kilianp07/errandplan/core/monitoring"
	"github.com/kilianp07/errandplan/core/recurrence"
	"github.com/kilianp07/errandplan/core/runlog"
	"github.com/kilianp07/errandplan/core/schedule"
	"github.com/kilianp07/errandplan/core/travel"
	"github.com/kilianp07/errandplan/core/trigger"
	infracalendar "github.com/kilianp07/errandplan/infra/calendar"
	"github.com/kilianp07/errandplan/infra/logger"
	inframetrics "github.com/kilianp07/errandplan/infra/metrics"
	"github.com/kilianp07/errandplan/infra/monitoring"
	infratrigger "github.com/kilianp07/errandplan/infra/trigger"
	"github.com/kilianp07/errandplan/internal/eventbus"
)

// Service wires the planner, its stores and the replan triggers together.
// Run reacts to ReplanRequested events on the bus; each trigger cancels the
// in-flight pass so only the newest inputs reach the agenda.
type Service struct {
	Agenda    *agenda.MemoryStore
	Estimator *estimate.HistoryEngine

	cfg          *config.Config
	log          logger.Logger
	bus          eventbus.EventBus
	sink         coremetrics.MetricsSink
	usage        usage.Store
	runStore     runlog.Store
	provider     travel.Provider
	resolver     travel.Resolver
	calendar     calendar.Provider
	announcer    trigger.Announcer
	expander     *recurrence.Expander
	cron         *cron.Cron
	defs         []*model.ErrandDefinition
	home         model.Coordinate
	loc          *time.Location
	ledgerCfg    ledger.Config
	placementCfg schedule.PlacementConfig
	cascadeCfg   schedule.CascadeConfig
	handler      http.Handler

	mu         sync.Mutex
	cancelPass context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	bus := eventbus.NewBuffered(16)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	usageStore, err := plugins.NewUsageStore(cfg.KPI)
	if err != nil {
		return nil, fmt.Errorf("kpi store: %w", err)
	}
	usageSink := inframetrics.NewUsageSink(usageStore, cfg.Metrics.EmissionFactors, nil)
	sink = coremetrics.NewMultiSink(sink, usageSink)

	runStore, err := plugins.NewRunLogStore(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("runlog store: %w", err)
	}

	provider, resolver, err := plugins.NewTravel(cfg.Travel, cfg.ResolverPlaces())
	if err != nil {
		return nil, fmt.Errorf("travel: %w", err)
	}
	var limiter *rate.Limiter
	if cfg.Travel.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Travel.RatePerSec), 1)
	}
	retryCfg := travel.RetryConfig{
		MaxRetries: cfg.Travel.MaxRetries,
		Backoff:    time.Duration(cfg.Travel.BackoffMS) * time.Millisecond,
	}
	wrappedProvider := travel.NewRetryingProvider(cfg.Travel.Mode, provider, retryCfg, limiter, logg)
	wrappedResolver := travel.NewRetryingResolver(cfg.Travel.Mode, resolver, retryCfg, limiter, logg)

	var cal calendar.Provider = calendar.Fixture{}
	if len(cfg.Calendar.Sources) > 0 {
		timeout := time.Duration(cfg.Calendar.TimeoutSeconds) * time.Second
		cal = infracalendar.NewICSProvider(cfg.Calendar.Sources, cfg.PlaceIndex(), cfg.Calendar.IgnoreTitles, timeout)
	}

	defs, err := cfg.Definitions()
	if err != nil {
		return nil, fmt.Errorf("errand definitions: %w", err)
	}
	ledgerCfg, err := cfg.Planning.LedgerConfig()
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	loc, err := cfg.Planning.Location()
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	var announcer trigger.Announcer = trigger.NopAnnouncer{}
	if cfg.Trigger.MQTTEnabled {
		pt, err := infratrigger.NewPahoTrigger(cfg.Trigger.MQTT, bus)
		if err != nil {
			return nil, fmt.Errorf("mqtt trigger: %w", err)
		}
		announcer = pt
	}

	cr := cron.New()
	if cfg.Planning.Cron != "" {
		if _, err := cr.AddFunc(cfg.Planning.Cron, func() {
			bus.Publish(events.ReplanRequested{Source: "cron", At: time.Now()})
		}); err != nil {
			return nil, fmt.Errorf("cron: %w", err)
		}
	}

	svc := &Service{
		Agenda:       agenda.NewMemoryStore(),
		Estimator:    estimate.NewHistoryEngine(cfg.Estimate.Window),
		cfg:          cfg,
		log:          logg,
		bus:          bus,
		sink:         sink,
		usage:        usageStore,
		runStore:     runStore,
		provider:     wrappedProvider,
		resolver:     wrappedResolver,
		calendar:     cal,
		announcer:    announcer,
		expander:     recurrence.NewExpander(logg),
		cron:         cr,
		defs:         defs,
		home:         cfg.Planning.Home.Coordinate(),
		loc:          loc,
		ledgerCfg:    ledgerCfg,
		placementCfg: schedule.PlacementConfig{MaxCandidateIntervals: cfg.Planning.MaxCandidates},
		cascadeCfg:   schedule.CascadeConfig{DepthBudget: cfg.Planning.CascadeDepth},
	}
	svc.handler = svc.routes()
	return svc, nil
}

// Handler returns the HTTP surface of the service.
func (s *Service) Handler() http.Handler { return s.handler }

func (s *Service) routes() http.Handler {
	token := s.cfg.Server.AuthToken
	mux := http.NewServeMux()
	mux.Handle("/api/schedule/runs", apischedule.NewRunsHandler(s.runStore, token))
	mux.Handle("/api/schedule/replan", apischedule.NewReplanHandler(s.bus, token))
	mux.Handle("/api/schedule/export", apischedule.NewExportHandler(s.Agenda, token))
	mux.Handle("/api/errands/agenda", apierrands.NewAgendaHandler(s.Agenda, token))
	mux.Handle("/api/errands/confirm", apierrands.NewConfirmHandler(s.Agenda, token))
	mux.Handle("/api/errands/completion", apierrands.NewCompletionHandler(s.Agenda, s.Estimator, token))
	mux.Handle("/api/errands/actual", apierrands.NewActualHandler(s.Estimator, token))
	mux.Handle("/api/errands/kpis", apierrands.NewKPIHandler(s.Estimator, s.usage, token))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run starts the triggers and the HTTP server and blocks until the context
// is cancelled. An initial pass is planned on startup.
func (s *Service) Run(ctx context.Context) error {
	inframetrics.StartEventCollector(ctx, s.bus, s.sink)

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	s.cron.Start()
	defer s.cron.Stop()

	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.handler}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("server shutdown: %v", err)
		}
	}()

	s.bus.Publish(events.ReplanRequested{Source: "startup", At: time.Now()})

	for {
		select {
		case <-ctx.Done():
			s.cancelInFlight()
			s.wg.Wait()
			return nil
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			req, isReplan := ev.(events.ReplanRequested)
			if !isReplan {
				continue
			}
			s.startPass(ctx, req.Source)
		}
	}
}

// startPass cancels any in-flight pass and plans a fresh one.
func (s *Service) startPass(ctx context.Context, source string) {
	s.mu.Lock()
	if s.cancelPass != nil {
		s.cancelPass()
	}
	passCtx, cancel := context.WithCancel(ctx)
	s.cancelPass = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.RunPass(passCtx, source); err != nil {
			if errors.Is(err, schedule.ErrPassCancelled) {
				s.log.Debugf("pass for %s superseded by a newer trigger", source)
				return
			}
			s.log.Errorf("planning pass failed: %v", err)
			coremon.CaptureException(err, map[string]string{"source": source})
		}
	}()
}

func (s *Service) cancelInFlight() {
	s.mu.Lock()
	if s.cancelPass != nil {
		s.cancelPass()
	}
	s.mu.Unlock()
}

// RunPass executes one planning pass, commits the outcome to the agenda and
// announces it.
func (s *Service) RunPass(ctx context.Context, source string) error {
	res, err := s.plan(ctx)
	if err != nil {
		return err
	}
	s.Agenda.Commit(res.RunID, res.Placed)
	if err := s.announcer.AnnounceRun(res.RunID, res.Stats.Placed, res.Stats.Unschedulable, time.Now()); err != nil {
		s.log.Warnf("announce run %s: %v", res.RunID, err)
	}
	if n := res.Stats.Unschedulable; n > 0 {
		coremon.CaptureMessage("planning pass left occurrences unschedulable", map[string]string{
			"run_id": res.RunID,
			"count":  strconv.Itoa(n),
			"source": source,
		})
	}
	return nil
}

// PlanOnce runs a single pass and commits it without announcing. The plan
// subcommand uses it for one-shot runs.
func (s *Service) PlanOnce(ctx context.Context) (*schedule.Result, error) {
	res, err := s.plan(ctx)
	if err != nil {
		return nil, err
	}
	s.Agenda.Commit(res.RunID, res.Placed)
	return res, nil
}

func (s *Service) plan(ctx context.Context) (*schedule.Result, error) {
	horizon := model.NewHorizon(time.Now().In(s.loc), s.cfg.Planning.HorizonDays)
	busy, err := s.calendar.BusyEvents(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}

	// Fresh memo per pass: estimates stay coherent inside the pass without
	// the cache outliving what the matrix service reported.
	search, err := schedule.NewSearch(travel.NewMemo(s.provider), s.resolver, s.home, s.placementCfg, s.log)
	if err != nil {
		return nil, err
	}
	cascade, err := schedule.NewResolver(search, s.cascadeCfg, s.log)
	if err != nil {
		return nil, err
	}
	planner, err := schedule.NewPlanner(s.expander, search, cascade, s.ledgerCfg, s.log)
	if err != nil {
		return nil, err
	}
	planner.SetMetricsSink(s.sink)
	planner.SetBus(s.bus)
	planner.SetRunStore(s.runStore)

	return planner.Run(ctx, schedule.PlanRequest{
		Definitions: s.adjustedDefinitions(),
		Horizon:     horizon,
		Busy:        busy,
		Confirmed:   s.Agenda.ConfirmedIn(horizon),
	})
}

// adjustedDefinitions applies the learned durations, clamped to each
// definition's flex bounds and window so feedback can never invalidate a
// definition.
func (s *Service) adjustedDefinitions() []*model.ErrandDefinition {
	out := make([]*model.ErrandDefinition, len(s.defs))
	for i, def := range s.defs {
		adj := *def
		adj.Duration = s.Estimator.DurationFor(def.ID, def.Duration)
		if adj.FlexDuration {
			if adj.MinDuration > 0 && adj.Duration < adj.MinDuration {
				adj.Duration = adj.MinDuration
			}
			if adj.MaxDuration > 0 && adj.Duration > adj.MaxDuration {
				adj.Duration = adj.MaxDuration
			}
		}
		if wd := adj.Window.Duration(); adj.Duration > wd {
			adj.Duration = wd
		}
		out[i] = &adj
	}
	return out
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.cancelInFlight()
	s.wg.Wait()
	s.announcer.Close()
	s.bus.Close()
	err := s.runStore.Close()
	if c, ok := s.usage.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	coremon.Flush(2 * time.Second)
	return err
}
