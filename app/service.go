// Package app wires the guardian components into a runnable service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/usermihir/Agentic-EV/api/operator"
	planapi "github.com/usermihir/Agentic-EV/api/plan"
	resapi "github.com/usermihir/Agentic-EV/api/reservations"
	"github.com/usermihir/Agentic-EV/config"
	coremetrics "github.com/usermihir/Agentic-EV/core/metrics"
	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/planner"
	"github.com/usermihir/Agentic-EV/core/predict"
	"github.com/usermihir/Agentic-EV/core/reservation"
	"github.com/usermihir/Agentic-EV/core/telemetry"
	"github.com/usermihir/Agentic-EV/core/trust"
	"github.com/usermihir/Agentic-EV/infra/audit"
	"github.com/usermihir/Agentic-EV/infra/logger"
	"github.com/usermihir/Agentic-EV/infra/metrics"
	"github.com/usermihir/Agentic-EV/infra/mqtt"
	"github.com/usermihir/Agentic-EV/infra/partner"
	"github.com/usermihir/Agentic-EV/infra/store"
	"github.com/usermihir/Agentic-EV/internal/eventbus"
)

// Service orchestrates the planner, the reservation manager and their
// collaborators.
type Service struct {
	Planner *planner.Planner
	Manager *reservation.Manager
	Store   *store.Memory

	cfg      *config.Config
	bus      eventbus.EventBus
	sink     coremetrics.MetricsSink
	scorer   *trust.Scorer
	audit    *audit.SQLiteStore
	ingestor *mqtt.Ingestor
	rolling  *telemetry.RollingStats
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	repo := store.NewMemory()
	for _, seed := range cfg.Stations {
		repo.PutStation(seed.Station)
		for _, c := range seed.Connectors {
			if c.Status == "" {
				c.Status = model.StatusAvailable
			}
			repo.PutConnector(c)
		}
	}

	sink, err := metrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	bus := eventbus.New(16)

	trail, err := audit.NewSQLiteStore(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}

	scorer, err := trust.NewScorer(cfg.Trust)
	if err != nil {
		return nil, fmt.Errorf("trust scorer: %w", err)
	}

	manager, err := reservation.NewManager(cfg.Reservation, repo, repo, repo, trail, sink, bus, logger.New("reservation"))
	if err != nil {
		return nil, fmt.Errorf("reservation manager: %w", err)
	}

	rolling := telemetry.NewRollingStats()
	var partners planner.PartnerFinder
	if cfg.Partner.BaseURL != "" {
		partners = partnerClient(cfg.Partner)
	}
	plan, err := planner.New(cfg.Planner, repo, telemetry.BoundedProvider(rolling), predict.NewQueueEngine(),
		scorer, manager, partners, trail, sink, bus, logger.New("planner"))
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	svc := &Service{
		Planner: plan,
		Manager: manager,
		Store:   repo,
		cfg:     cfg,
		bus:     bus,
		sink:    sink,
		scorer:  scorer,
		audit:   trail,
		rolling: rolling,
		log:     logg,
	}

	if cfg.MQTT.Broker != "" {
		ingestor, err := mqtt.NewIngestor(cfg.MQTT, rolling, manager, repo)
		if err != nil {
			return nil, fmt.Errorf("mqtt ingestor: %w", err)
		}
		svc.ingestor = ingestor
	}
	return svc, nil
}

func partnerClient(cfg partner.Config) planner.PartnerFinder {
	return partner.NewClient(cfg)
}

// Handler assembles the HTTP API.
func (s *Service) Handler() http.Handler {
	token := s.cfg.API.Token
	mux := http.NewServeMux()
	mux.Handle("/api/plan", planapi.NewHandler(s.Planner, s.Store, token))
	mux.Handle("/api/reservations/cancel", resapi.NewCancelHandler(s.Manager, token))
	mux.Handle("/api/reservations/start", resapi.NewStartSessionHandler(s.Manager, token))
	mux.Handle("/api/operator/overview", operator.NewOverviewHandler(s.Store, s.scorer, s.Manager, token))
	mux.Handle("/api/operator/interventions", operator.NewInterventionsHandler(s.audit, token))
	mux.Handle("/api/operator/quarantine", operator.NewQuarantineHandler(s.Manager, token))
	return mux
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Manager.Run(ctx)

	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			addr := fmt.Sprintf(":%d", s.cfg.Metrics.PrometheusPort)
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("guardian API listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.ingestor != nil {
		s.ingestor.Disconnect()
	}
	s.bus.Close()
	return s.audit.Close()
}
