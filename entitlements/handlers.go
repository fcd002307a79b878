// CLAUDE:SUMMARY chi router for both variants: webhook and upload ingress, snapshot and sheet egress, liveness probes, JSON error envelopes.
package entitlements

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/entitlemate/shield"
	"github.com/hazyhaar/entitlemate/snapshot"
	"github.com/hazyhaar/entitlemate/snapstore"
)

// Wire messages. Clients match on these strings.
const (
	msgNoData       = "No data received"
	msgNotContainer = "Expected a JSON object or array"
	msgNotArray     = "Expected a JSON array"
	msgNotFound     = "Data not found"
	msgTooLarge     = "request body too large"
	msgUpdated      = "Data updated successfully"
	msgAPIWorking   = "API is working"
	msgIndex        = "EntitleMate backend is running. Use /upload to post data and /data to fetch it."
)

// Handler builds the router for the configured variant. ctx bounds the
// rate limiter's background cleanup.
func (s *Service) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultAPIStack(ctx, shield.Config{
		MaxBodyBytes:   s.cfg.MaxBodyBytes,
		AllowedOrigins: s.cfg.CORSOrigins,
		RPS:            s.cfg.RPS(),
		Burst:          s.cfg.RateLimit.Burst,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", s.handleHealth)

	switch s.cfg.Variant {
	case VariantUpload:
		r.Post("/upload", s.handleUpload)
		r.Get("/data", s.handleData)
		r.Get("/", s.handleIndex)
	default:
		r.Get("/api/entitlements", s.handleSheet)
		r.Post("/api/entitlements", s.handleWebhook)
		r.Get("/test", s.handleTest)
	}
	return r
}

// handleWebhook accepts one record or a full array and replaces the snapshot.
func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())

	p, ok := s.readPayload(w, r)
	if !ok {
		return
	}
	if p.Empty() {
		log.Warn("entitlements: empty payload", "kind", p.Kind.String())
		jsonErr(w, msgNoData, http.StatusBadRequest)
		return
	}
	snap, err := p.Normalize()
	if err != nil {
		log.Warn("entitlements: rejected payload", "kind", p.Kind.String())
		jsonErr(w, msgNotContainer, http.StatusBadRequest)
		return
	}

	if _, err := s.Replace(r.Context(), snap); err != nil {
		log.Error("entitlements: save failed", "error", err)
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgUpdated})
}

// handleUpload accepts a full array only.
func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())

	p, ok := s.readPayload(w, r)
	if !ok {
		return
	}
	snap, err := p.RequireArray()
	if err != nil {
		log.Warn("entitlements: rejected upload", "kind", p.Kind.String())
		jsonErr(w, msgNotArray, http.StatusBadRequest)
		return
	}

	n, err := s.Replace(r.Context(), snap)
	if err != nil {
		log.Error("entitlements: save failed", "error", err)
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Status: "success", Records: n})
}

// readPayload reads and parses the body, answering the error itself when
// it returns false.
func (s *Service) readPayload(w http.ResponseWriter, r *http.Request) (snapshot.Payload, bool) {
	log := shield.GetLogger(r.Context())

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if shield.IsTooLarge(err) {
			log.Warn("entitlements: body too large", "limit", s.cfg.MaxBodyBytes)
			jsonErr(w, msgTooLarge, http.StatusRequestEntityTooLarge)
			return snapshot.Payload{}, false
		}
		if err != nil {
			log.Warn("entitlements: read body", "error", err)
			jsonErr(w, msgNoData, http.StatusBadRequest)
			return snapshot.Payload{}, false
		}
		body = b
	}
	log.Debug("entitlements: payload received",
		"bytes", len(body),
		"content_type", r.Header.Get("Content-Type"),
	)

	p, err := snapshot.ParsePayload(body)
	if errors.Is(err, snapshot.ErrNoData) {
		log.Warn("entitlements: no data received", "bytes", len(body))
		jsonErr(w, msgNoData, http.StatusBadRequest)
		return snapshot.Payload{}, false
	}
	if err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return snapshot.Payload{}, false
	}
	return p, true
}

// handleData serves the stored snapshot bytes verbatim.
func (s *Service) handleData(w http.ResponseWriter, r *http.Request) {
	data, err := s.Raw(r.Context())
	if errors.Is(err, snapstore.ErrNotFound) {
		jsonErr(w, msgNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		shield.GetLogger(r.Context()).Error("entitlements: read failed", "error", err)
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleSheet fetches the published sheet fresh on every call.
func (s *Service) handleSheet(w http.ResponseWriter, r *http.Request) {
	recs, err := s.FetchSheet(r.Context())
	if err != nil {
		shield.GetLogger(r.Context()).Error("entitlements: sheet fetch failed", "error", err)
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Service) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: msgAPIWorking})
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, msgIndex)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: s.Backend()})
}

type messageResponse struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type uploadResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
