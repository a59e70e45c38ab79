package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const familiesPrefix = "/survival/api/v1/families/"

// Router wraps http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler registers an http.Handler (promhttp)
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterSurvivalRoutes
//
//	GET  /survival/api/v1/families
//	GET  /survival/api/v1/families/{id}/status
//	GET  /survival/api/v1/families/{id}/alerts
//	POST /survival/api/v1/families/{id}/alert/clear
//	POST /survival/api/v1/families/{id}/retry
func (r *Router) RegisterSurvivalRoutes(h *SurvivalHandler) {
	r.Handle("/survival/api/v1/families", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListFamilies(w, req)
	})

	r.Handle(familiesPrefix, func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, familiesPrefix)
		id, action, ok := strings.Cut(rest, "/")
		if !ok || id == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var method string
		var handle func(http.ResponseWriter, *http.Request, string)
		switch action {
		case "status":
			method, handle = http.MethodGet, h.GetStatus
		case "alerts":
			method, handle = http.MethodGet, h.ListAlerts
		case "alert/clear":
			method, handle = http.MethodPost, h.ClearAlert
		case "retry":
			method, handle = http.MethodPost, h.Retry
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handle(w, req, id)
	})
}

// RegisterHealthRoutes /healthz and /metrics
func (r *Router) RegisterHealthRoutes(h *SurvivalHandler, metricsHandler http.Handler) {
	r.Handle("/healthz", h.Health)
	if metricsHandler != nil {
		r.HandleHandler("/metrics", metricsHandler)
	}
}
