package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/usecase"
	"go.uber.org/zap"
)

type janitorRunRequest struct {
	Job    string `json:"job,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// JanitorHandler exposes the authenticated maintenance trigger. The secret is
// compared in constant time; the durable gate turns over-eager callers into
// 429s with a Retry-After.
type JanitorHandler struct {
	JanitorUC usecase.JanitorUsecase
	Secret    string
	Log       *zap.SugaredLogger
}

func NewJanitorHandler(janitorUC usecase.JanitorUsecase, secret string, log *zap.SugaredLogger) *JanitorHandler {
	return &JanitorHandler{JanitorUC: janitorUC, Secret: secret, Log: log}
}

func (h *JanitorHandler) Run(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Janitor-Token")
	if h.Secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}

	// Body is optional; an empty body means "all jobs, real run".
	var req janitorRunRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	report, err := h.JanitorUC.Run(r.Context(), "http", usecase.JanitorOptions{
		Job:    req.Job,
		DryRun: req.DryRun,
		Limit:  req.Limit,
	})
	if err != nil {
		var gateErr *usecase.GateClosedError
		if errors.As(err, &gateErr) {
			retryAfter := int(time.Until(gateErr.NextAllowedAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:   "RateLimited",
				Message: "janitor ran recently, retry later",
			})
			return
		}
		h.Log.Errorw("janitor run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
