package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/utils/httputil"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Registry interface {
	List(ctx context.Context) ([]agent.Agent, error)
	Add(ctx context.Context, ip string, name *string) ([]agent.Agent, error)
	Remove(ctx context.Context, ip string) ([]agent.Agent, error)
	Rename(ctx context.Context, ip string, name string) (*agent.Agent, error)
}

type Fleet interface {
	PollAll(ctx context.Context) ([]agent.StatusOutcome, error)
	DispatchOne(ctx context.Context, ip string, cmd agent.Command) agent.CommandOutcome
	DispatchBulk(ctx context.Context, ips []string, cmd agent.Command) []agent.CommandOutcome
}

type Server struct {
	logger   *zap.Logger
	server   *http.Server
	registry Registry
	fleet    Fleet
	validate *validator.Validate
}

func NewServer(logger *zap.Logger, config *Config, registry Registry, fleet Fleet, gatherer prometheus.Gatherer) *Server {
	logger = logger.Named("api")

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	r := mux.NewRouter()
	server := &Server{
		logger: logger,
		server: &http.Server{
			Addr:         config.GetAddr(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: config.GetWriteTimeout(),
			Handler:      r,
			ErrorLog:     zap.NewStdLog(logger),
		},
		registry: registry,
		fleet:    fleet,
		validate: validate,
	}

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(logger.Named("prom")),
	}))

	apiR := r.PathPrefix("/api").Subrouter()
	apiR.HandleFunc("/pis", server.apiPisGet).Methods("GET")
	apiR.HandleFunc("/pis", server.apiPisPost).Methods("POST")
	apiR.HandleFunc("/pis/{ip}", server.apiPisDelete).Methods("DELETE")
	apiR.HandleFunc("/pis/{ip}/name", server.apiPisRename).Methods("PUT")
	apiR.HandleFunc("/status", server.apiStatus).Methods("GET")
	// bulk first, so "bulk" is never taken as an IP
	apiR.HandleFunc("/command/bulk/{command}", server.apiCommandBulk).Methods("POST")
	apiR.HandleFunc("/command/{ip}/{command}", server.apiCommand).Methods("POST")

	return server
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context, g *errgroup.Group) error {
	g.Go(func() error {
		go func() {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.server.Shutdown(shutdownCtx)
		}()

		s.logger.Info("starting server", zap.String("addr", s.server.Addr))
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	})
	return nil
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func respondError(rw http.ResponseWriter, status int, msg string) {
	httputil.RespondJSONStatus(rw, status, errorResponse{Success: false, Error: msg})
}

// detach keeps agent calls running to completion if the operator's
// connection drops mid-batch.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) validTarget(ip string) bool {
	return s.validate.Var(ip, "ip|hostname") == nil
}
