package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
	"github.com/haukened/hostguard/internal/guard/services/guard"
)

const (
	maxBodyBytes   = 1 << 20
	requestTimeout = 60 * time.Second
)

// Service is the operation surface exposed over HTTP.
type Service interface {
	BlockURL(ctx context.Context, raw string) (domain.BlockTarget, error)
	UnblockURL(ctx context.Context, raw string) (domain.BlockTarget, error)
	ListBlocked() []string
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Status() guard.Status
	AddKeyword(word, category string) (bool, error)
	RemoveKeyword(word, category string) (bool, error)
	ListKeywords(category string) domain.Keywords
	CheckContent(text string) (bool, domain.ScoreResult)
	CheckWebpage(ctx context.Context, url string) domain.Verdict
}

type handler struct {
	svc     Service
	metrics *Metrics
	logger  logpkg.Logger
}

type urlRequest struct {
	URL string `json:"url"`
}

type keywordRequest struct {
	Word     string `json:"word"`
	Category string `json:"category"`
}

type textRequest struct {
	Text string `json:"text"`
}

type targetResponse struct {
	Target string   `json:"target"`
	Kind   string   `json:"kind"`
	Names  []string `json:"names"`
}

type checkResponse struct {
	ShouldBlock bool               `json:"should_block"`
	Score       domain.ScoreResult `json:"score"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Severity string `json:"severity,omitempty"`
}

// NewRouter binds the API and /metrics onto a chi router.
func NewRouter(svc Service, m *Metrics, logger logpkg.Logger) http.Handler {
	if m == nil {
		m = NewMetrics()
	}
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	h := &handler{svc: svc, metrics: m, logger: logger}
	m.session(svc.Status().Active, svc.Status().Blocked)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, m.instrument)

	r.Handle("/metrics", m.Handler())
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(requestTimeout))

		api.Post("/block", h.block)
		api.Post("/unblock", h.unblock)
		api.Get("/blocked", h.blocked)
		api.Post("/enable", h.enable)
		api.Post("/disable", h.disable)
		api.Get("/status", h.status)

		api.Get("/keywords", h.listKeywords)
		api.Post("/keywords", h.addKeyword)
		api.Delete("/keywords", h.removeKeyword)

		api.Post("/check/content", h.checkContent)
		api.Post("/check/webpage", h.checkWebpage)
	})
	return r
}

func (h *handler) block(w http.ResponseWriter, r *http.Request) {
	h.mutateTarget(w, r, "block", h.svc.BlockURL)
}

func (h *handler) unblock(w http.ResponseWriter, r *http.Request) {
	h.mutateTarget(w, r, "unblock", h.svc.UnblockURL)
}

func (h *handler) mutateTarget(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) (domain.BlockTarget, error)) {
	var req urlRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := fn(r.Context(), req.URL)
	h.metrics.op(op, err)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	h.syncSession()
	names := t.Names()
	if op == "unblock" {
		names = t.Counterparts()
	}
	writeJSON(w, http.StatusOK, targetResponse{Target: t.Name, Kind: t.Kind.String(), Names: names})
}

func (h *handler) blocked(w http.ResponseWriter, _ *http.Request) {
	list := h.svc.ListBlocked()
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"blocked": list})
}

func (h *handler) enable(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Enable(r.Context())
	h.metrics.op("enable", err)
	h.syncSession()
	if err != nil {
		h.fail(w, "enable", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *handler) disable(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Disable(r.Context())
	h.metrics.op("disable", err)
	h.syncSession()
	if err != nil {
		h.fail(w, "disable", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *handler) listKeywords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListKeywords(r.URL.Query().Get("category")))
}

func (h *handler) addKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if !h.decode(w, r, &req) {
		return
	}
	added, err := h.svc.AddKeyword(req.Word, req.Category)
	h.metrics.op("add_keyword", err)
	if err != nil {
		h.fail(w, "add_keyword", err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"added": added})
}

func (h *handler) removeKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if !h.decode(w, r, &req) {
		return
	}
	removed, err := h.svc.RemoveKeyword(req.Word, req.Category)
	h.metrics.op("remove_keyword", err)
	if err != nil {
		h.fail(w, "remove_keyword", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *handler) checkContent(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	block, score := h.svc.CheckContent(req.Text)
	h.metrics.verdict("content", block)
	writeJSON(w, http.StatusOK, checkResponse{ShouldBlock: block, Score: score})
}

func (h *handler) checkWebpage(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !h.decode(w, r, &req) {
		return
	}
	v := h.svc.CheckWebpage(r.Context(), req.URL)
	h.metrics.verdict("webpage", v.ShouldBlock)
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) syncSession() {
	st := h.svc.Status()
	h.metrics.session(st.Active, st.Blocked)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// fail maps domain errors to status codes. A failed restore is reported as
// critical because the override file is left modified.
func (h *handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTarget), errors.Is(err, domain.ErrInvalidKeyword):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrRestoreIntegrity):
		h.logger.Error(map[string]any{"op": op, "error": err}, "restore_integrity_failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Severity: "critical"})
	default:
		h.logger.Error(map[string]any{"op": op, "error": err}, "operation_failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
