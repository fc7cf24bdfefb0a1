package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/reflexhq/reflex/internal/pipeline"
)

// ProcessRequest is the body of POST /process. Context and Priority
// are accepted from callers and echoed into the access log; neither
// changes what the detectors do.
type ProcessRequest struct {
	Text     string                 `json:"text"`
	UserID   string                 `json:"user_id,omitempty"`
	Tier     string                 `json:"tier,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Priority string                 `json:"priority,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleProcess screens a single text through the pipeline
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodySize)

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	if req.UserID == "" {
		req.UserID = r.Header.Get("X-User-ID")
	}
	if req.Tier == "" {
		req.Tier = r.Header.Get("X-User-Tier")
	}

	if req.Priority != "" || len(req.Context) > 0 {
		s.logger.WithRequestID(getRequestID(r.Context())).Debug("Request metadata",
			zap.String("priority", req.Priority),
			zap.Int("context_keys", len(req.Context)),
		)
	}

	decision, err := s.pipeline.Process(r.Context(), pipeline.Request{
		Text:     req.Text,
		UserID:   req.UserID,
		Tier:     req.Tier,
		ClientIP: getClientIP(r),
		Endpoint: r.URL.Path,
	})
	if err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Warn("Pipeline error",
			zap.String("kind", string(pipeline.KindOf(err))),
			zap.Error(err),
		)
		status, code := statusFor(pipeline.KindOf(err))
		writeError(w, status, code, err.Error())
		return
	}

	if decision.Outcome == pipeline.OutcomeRateLimited {
		if decision.RetryAfterMS > 0 {
			seconds := (decision.RetryAfterMS + 999) / 1000
			w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		}
		writeJSON(w, http.StatusTooManyRequests, decision)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// statusFor maps pipeline error kinds to HTTP status codes
func statusFor(kind pipeline.Kind) (int, string) {
	switch kind {
	case pipeline.KindValidation:
		return http.StatusBadRequest, "validation_error"
	case pipeline.KindRateLimitExceeded:
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	case pipeline.KindStoreUnavailable:
		return http.StatusServiceUnavailable, "store_unavailable"
	case pipeline.KindTimeout:
		return http.StatusRequestTimeout, "timeout"
	case pipeline.KindConfiguration:
		return http.StatusInternalServerError, "configuration_error"
	default:
		return http.StatusInternalServerError, "detector_fault"
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
