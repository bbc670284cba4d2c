package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/ruralpay/txengine/internal/audit"
	"github.com/ruralpay/txengine/internal/csvio"
	"github.com/ruralpay/txengine/internal/services"
	"github.com/ruralpay/txengine/internal/validation"
	"go.uber.org/zap"
)

type LedgerHandler struct {
	policy       services.LockedPolicy
	maxBodyBytes int64
	logger       *zap.Logger
	validator    *validation.Helper
}

func NewLedgerHandler(policy services.LockedPolicy, maxBodyBytes int64, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerHandler{
		policy:       policy,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
		validator:    validation.Default(),
	}
}

// ProcessParams are the optional query parameters of Process.
type ProcessParams struct {
	LockedPolicy string `validate:"omitempty,oneof=reject-funding freeze allow"`
}

// ProcessResponse is returned by Process.
type ProcessResponse struct {
	Success  bool                 `json:"success"`
	RunID    string               `json:"runId"`
	Summary  services.Summary     `json:"summary"`
	Accounts []csvio.JSONSnapshot `json:"accounts"`
}

// Process runs a CSV transaction stream through a fresh ledger and returns
// the resulting accounts. Each request owns its own ledger; the
// locked_policy query parameter overrides the configured policy for it.
func (h *LedgerHandler) Process(w http.ResponseWriter, r *http.Request) {
	params := ProcessParams{LockedPolicy: r.URL.Query().Get("locked_policy")}
	if err := h.validator.ValidateStruct(&params); err != nil {
		validation.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	policy := h.policy
	if params.LockedPolicy != "" {
		policy = services.LockedPolicy(params.LockedPolicy)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	runID := uuid.NewString()
	processor := services.NewTransactionService(
		services.NewAccountLedger(policy),
		audit.NewAuditLogger(h.logger),
		runID,
	)

	summary, err := processor.Run(csvio.NewTransactionReader(r.Body))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			validation.SendErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge, nil)
			return
		}
		h.logger.Warn("Transaction stream rejected", zap.String("run_id", runID), zap.Error(err))
		validation.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	h.logger.Info("Run completed",
		zap.String("run_id", runID),
		zap.Int("processed", summary.Processed),
		zap.Int("rejected", summary.Rejected),
		zap.Int("malformed", summary.Malformed),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ProcessResponse{
		Success:  true,
		RunID:    runID,
		Summary:  summary,
		Accounts: csvio.JSONSnapshots(processor.Ledger().Snapshot()),
	})
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
