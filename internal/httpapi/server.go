package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailmind/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.ModelEntry
	StartDownload(id string) error
	CancelDownload(id string)
	DeleteModel(id string) error
	Generate(ctx context.Context, prompt string, maxTokens int, onToken func(string) error)
	Classify(ctx context.Context, text string, categories []string) (string, error)
	Enqueue(msgs []types.Message) int
	CancelQueue()
	Status() types.StatusResponse
	Ready() bool
}

const defaultMaxTokens = 128

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Post("/models/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.StartDownload(id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": "downloading"})
	})

	r.Post("/models/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		svc.CancelDownload(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteModel(chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = defaultMaxTokens
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		logGenerateStart(r, lvl)

		// Join server base context with request context so shutdown
		// cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if generateTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, generateTimeout)
			defer tcancel()
		}

		enc := json.NewEncoder(w)
		count := 0
		svc.Generate(ctx, req.Prompt, maxTokens, func(tok string) error {
			if err := enc.Encode(map[string]string{"token": tok}); err != nil {
				return err
			}
			if lvl >= LevelDebug {
				logGenerateToken(tok)
			}
			count++
			if flush != nil {
				flush()
			}
			return nil
		})
		_ = enc.Encode(map[string]any{"done": true, "tokens": count})
		if flush != nil {
			flush()
		}
		logGenerateEnd(r, lvl, count, time.Since(start))
	})

	r.Post("/classify", func(w http.ResponseWriter, r *http.Request) {
		var req types.ClassifyRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		category, err := svc.Classify(ctx, req.Text, req.Categories)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ClassifyResponse{Category: category})
	})

	r.Post("/queue", func(w http.ResponseWriter, r *http.Request) {
		var req types.EnqueueRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		n := svc.Enqueue(req.Messages)
		writeJSON(w, http.StatusAccepted, map[string]int{"accepted": n})
	})

	r.Delete("/queue", func(w http.ResponseWriter, r *http.Request) {
		svc.CancelQueue()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeJSON enforces the JSON content type and body limit, reporting false
// after writing the error response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
