// Package http implements the HTTP transport for cadence.
//
// This transport exposes a JSON REST API for rendering responses, validating
// documents and exporting the active rule set, plus the Swagger UI. It is
// best suited for web backends and chat assistants.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/cadence/docs" // registers the swagger doc
	"github.com/nadzzz/cadence/internal/message"
	"github.com/nadzzz/cadence/internal/transport"
)

const defaultMaxBodyBytes = 1 << 20

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port         int
	maxBodyBytes int64

	mu     sync.Mutex
	server *http.Server
}

// New creates a new HTTP transport on the given port. maxBodyBytes <= 0 uses
// a 1 MiB limit.
func New(port int, maxBodyBytes int64) *Transport {
	return &Transport{port: port, maxBodyBytes: maxBodyBytes}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server and serves requests with svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           Routes(svc, t.maxBodyBytes),
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Routes returns the API handler. Request bodies are limited to
// maxBodyBytes; values <= 0 use a 1 MiB limit.
func Routes(svc transport.Service, maxBodyBytes int64) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	h := &handler{svc: svc, maxBodyBytes: maxBodyBytes}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/speak", h.speak)
	mux.HandleFunc("POST /v1/validate", h.validate)
	mux.HandleFunc("GET /v1/rules", h.rules)

	// Swagger UI, serving the registered OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

type handler struct {
	svc          transport.Service
	maxBodyBytes int64
}

// speak processes a POST /v1/speak request.
//
// @Summary     Render a response to SSML
// @Description Builds an SSML document for the given text and emotional context. Rendering never fails:
// @Description on an internal error the original text is returned in the ssml field.
// @Tags        speak
// @Accept      json
// @Produce     json
// @Param       request  body      message.SpeakRequest  true  "Response text and conversation context"
// @Success     200      {object}  message.SpeakResult
// @Failure     400      {object}  errorBody  "Invalid request"
// @Failure     500      {object}  errorBody  "Internal processing error"
// @Router      /v1/speak [post]
func (h *handler) speak(w http.ResponseWriter, r *http.Request) {
	var req message.SpeakRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.svc.Speak(r.Context(), &req)
	if err != nil {
		writeServiceError(w, "speak", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// validate processes a POST /v1/validate request.
//
// @Summary     Validate an SSML document
// @Description Accepts either a JSON body {"ssml": "..."} or the raw document with Content-Type application/ssml+xml.
// @Tags        validate
// @Accept      json
// @Accept      application/ssml+xml
// @Produce     json
// @Param       request  body      message.ValidateRequest  true  "Document to validate"
// @Success     200      {object}  ssml.Report
// @Failure     400      {object}  errorBody  "Invalid request"
// @Router      /v1/validate [post]
func (h *handler) validate(w http.ResponseWriter, r *http.Request) {
	var req message.ValidateRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/ssml+xml", "application/xml", "text/xml":
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("reading body: %w", err))
			return
		}
		req.SSML = string(body)
	default:
		if err := h.decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	rep, err := h.svc.Validate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, "validate", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// rules processes a GET /v1/rules request.
//
// @Summary     Export the active rule set
// @Tags        rules
// @Produce     json
// @Success     200  {object}  message.RulesResult
// @Failure     500  {object}  errorBody  "Internal processing error"
// @Router      /v1/rules [get]
func (h *handler) rules(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Rules(r.Context())
	if err != nil {
		writeServiceError(w, "rules", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, message.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slog.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
