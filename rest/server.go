package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fluxionlabs/fluxion/engine"
	"github.com/fluxionlabs/fluxion/flow"
	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/resource"
	"github.com/fluxionlabs/fluxion/session"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port      int
	flows     *flow.Service
	sessions  *session.Manager
	resources *resource.Manager
	engine    *engine.Engine
}

func NewServer(httpPort int, flows *flow.Service, sessions *session.Manager, resources *resource.Manager, eng *engine.Engine) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		Port:      httpPort,
		flows:     flows,
		sessions:  sessions,
		resources: resources,
		engine:    eng,
	}

	router := mux.NewRouter()
	router.HandleFunc("/flow", s.HandleCreateFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flow/execute", s.HandleExecuteFlow).Methods(http.MethodPost)
	router.HandleFunc("/session/{id}", s.HandleGetSession).Methods(http.MethodGet)
	router.HandleFunc("/session/{id}/resume", s.HandleResumeSession).Methods(http.MethodPost)
	router.HandleFunc("/resource/{kind}", s.HandleRegisterResource).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message string) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
