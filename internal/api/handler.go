package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/pipeline"
	"github.com/upishield/shikra/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	catalog   *rules.Catalog
	processor *pipeline.Processor
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, catalog *rules.Catalog, processor *pipeline.Processor, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		catalog:   catalog,
		processor: processor,
		version:   version,
	}
}

// TransactionRequest is the request body for POST /transactions.
type TransactionRequest struct {
	TransactionID string             `json:"transactionId,omitempty"`
	SenderUPI     string             `json:"senderUpi"`
	ReceiverUPI   string             `json:"receiverUpi"`
	Amount        float64            `json:"amount"`
	Timestamp     string             `json:"timestamp,omitempty"`
	Status        string             `json:"status,omitempty"`
	Description   string             `json:"description,omitempty"`
	MerchantName  string             `json:"merchantName,omitempty"`
	Location      *domain.Location   `json:"location,omitempty"`
	DeviceInfo    *domain.DeviceInfo `json:"deviceInfo,omitempty"`
}

// ScoreResponse is the response for POST /transactions.
type ScoreResponse struct {
	TransactionID string             `json:"transactionId"`
	RiskScore     float64            `json:"riskScore"`
	IsFraudulent  bool               `json:"isFraudulent"`
	Confidence    float64            `json:"confidence"`
	Reasons       []string           `json:"reasons,omitempty"`
	Assessment    *domain.Assessment `json:"assessment"`

	// Sender transaction count over the past hour, this one included.
	VelocityLastHour int64 `json:"velocityLastHour"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

func (r *TransactionRequest) toContext() (*domain.TransactionContext, error) {
	if r.SenderUPI == "" || r.ReceiverUPI == "" {
		return nil, errors.New("senderUpi and receiverUpi are required")
	}
	if r.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}

	tx := &domain.TransactionContext{
		SenderUPI:    r.SenderUPI,
		ReceiverUPI:  r.ReceiverUPI,
		Amount:       r.Amount,
		Status:       r.Status,
		Description:  r.Description,
		MerchantName: r.MerchantName,
		Location:     r.Location,
		DeviceInfo:   r.DeviceInfo,
	}
	if r.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return nil, errors.New("timestamp must be RFC3339")
		}
		tx.Timestamp = ts
	}
	return tx, nil
}

// ScoreTransaction handles POST /transactions: synchronous scoring.
func (h *Handler) ScoreTransaction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx, err := req.toContext()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	result, err := h.processor.Process(ctx, tx, req.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("scoring failed",
			"sender_upi", req.SenderUPI,
			"trace_id", traceID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "fraud detection failed",
		})
		return
	}

	resp := ScoreResponse{
		TransactionID: result.Transaction.ID,
		RiskScore:     result.Assessment.RiskScore,
		IsFraudulent:  result.Assessment.IsFraudulent,
		Confidence:    result.Assessment.Confidence,
		Reasons:       result.Assessment.AllReasons,
		Assessment:    result.Assessment,

		VelocityLastHour: result.VelocityLastHour,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// IngestTransaction handles POST /transactions/async: publishes the
// transaction to the event bus for the worker to score.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if _, err := req.toContext(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	msg := pipeline.IngestMessage{
		TransactionID: req.TransactionID,
		SenderUPI:     req.SenderUPI,
		ReceiverUPI:   req.ReceiverUPI,
		Amount:        req.Amount,
		Timestamp:     req.Timestamp,
		Status:        req.Status,
		Description:   req.Description,
		MerchantName:  req.MerchantName,
		DeviceInfo:    req.DeviceInfo,
	}
	if req.Location != nil {
		msg.City = req.Location.City
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode message",
		})
		return
	}

	if err := h.bus.Publish(ctx, domain.TopicTransactionIngested, payload); err != nil {
		slog.Error("failed to publish ingest message", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus unavailable",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}

// GetTransaction retrieves a scored transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListTransactionEvents returns the audit trail for a transaction.
func (h *Handler) ListTransactionEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	events, err := h.repo.ListDetectionEvents(ctx, txID)
	if err != nil {
		slog.Error("failed to list detection events", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// maxUploadSize caps CSV uploads at 10MB.
const maxUploadSize = 10 << 20

// CSVUpload handles POST /csv-upload: batch scoring of a CSV file.
// Accepts either a multipart form with a "file" field or a raw
// text/csv request body.
func (h *Handler) CSVUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	var (
		file     multipart.File
		fileName string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid multipart form",
			})
			return
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "file field is required",
			})
			return
		}
		defer f.Close()
		file = f
		fileName = header.Filename
	}

	var rows *pipeline.Rows
	var err error
	if file != nil {
		rows, err = pipeline.ParseCSV(file)
	} else {
		rows, err = pipeline.ParseCSV(r.Body)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	result := h.processor.ProcessBatch(ctx, rows)
	result.FileName = fileName

	writeJSON(w, http.StatusOK, result)
}

// ListAlerts returns alerts, optionally filtered by ?status=.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := r.URL.Query().Get("status")

	alerts, err := h.repo.ListAlerts(ctx, status)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert retrieves an alert by ID.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")

	alert, err := h.repo.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
			return
		}
		slog.Error("failed to get alert", "id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// UpdateAlertStatusRequest is the request body for alert transitions.
type UpdateAlertStatusRequest struct {
	Status string `json:"status"`
}

// UpdateAlertStatus handles POST /alerts/{id}/status.
// Enforces the alert lifecycle: new alerts can be acknowledged,
// resolved, or marked false positive; acknowledged alerts can be
// resolved or marked false positive.
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")

	var req UpdateAlertStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	alert, err := h.repo.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
			return
		}
		slog.Error("failed to get alert", "id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	if !domain.ValidAlertTransition(alert.Status, req.Status) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "invalid status transition from " + alert.Status + " to " + req.Status,
		})
		return
	}

	var resolvedAt *time.Time
	if req.Status == domain.AlertStatusResolved || req.Status == domain.AlertStatusFalsePositive {
		now := time.Now().UTC()
		resolvedAt = &now
	}

	if err := h.repo.UpdateAlertStatus(ctx, alertID, req.Status, resolvedAt); err != nil {
		slog.Error("failed to update alert status", "id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "update failed",
		})
		return
	}

	slog.Info("alert status updated",
		"alert_id", alertID,
		"from", alert.Status,
		"to", req.Status,
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     alertID,
		"status": req.Status,
	})
}

// ListPatterns returns the patterns currently loaded in the catalog.
func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	compiled := h.catalog.Patterns()

	patterns := make([]*domain.FraudPattern, len(compiled))
	for i, cp := range compiled {
		patterns[i] = cp.Pattern
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

// CreatePatternRequest is the request body for creating a pattern.
type CreatePatternRequest struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Category    domain.PatternCategory `json:"category"`
	Severity    domain.Severity        `json:"severity"`
	Rules       []domain.RawRule       `json:"rules,omitempty"`
	Expression  string                 `json:"expression,omitempty"`
	Indicators  []string               `json:"indicators,omitempty"`
	IsActive    bool                   `json:"isActive"`
}

// CreatePattern creates a new fraud pattern and saves it to the store.
// The pattern is validated against the catalog's compiler before it is
// persisted, so unknown fields, operators, or bad guard expressions
// are rejected up front.
func (h *Handler) CreatePattern(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}

	pattern := &domain.FraudPattern{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Severity:    req.Severity,
		Rules:       req.Rules,
		Expression:  req.Expression,
		Indicators:  req.Indicators,
		IsActive:    req.IsActive,
	}

	// Validate before persisting
	if _, err := h.catalog.Compile(pattern); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid pattern: " + err.Error(),
		})
		return
	}

	if err := h.repo.SavePattern(ctx, pattern); err != nil {
		slog.Error("failed to save pattern", "id", pattern.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save pattern",
		})
		return
	}

	slog.Info("pattern created", "id", pattern.ID, "name", pattern.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"pattern": pattern,
		"message": "Pattern created. Call POST /patterns/reload to apply changes.",
	})
}

// ReloadPatterns reloads all active patterns from the store into the
// catalog. This enables hot-reloading without server restart.
func (h *Handler) ReloadPatterns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.catalog.ReloadFromStore(ctx, h.repo); err != nil {
		slog.Error("failed to reload patterns", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload patterns",
		})
		return
	}

	count := h.catalog.Count()
	slog.Info("patterns reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "patterns reloaded successfully",
		"count":   count,
	})
}

// ListBlacklist returns all blacklist entries.
func (h *Handler) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.repo.ListBlacklist(ctx)
	if err != nil {
		slog.Error("failed to list blacklist", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// ReportBlacklistRequest is the request body for reporting an identifier.
type ReportBlacklistRequest struct {
	Identifier     string                `json:"identifier"`
	IdentifierType domain.IdentifierType `json:"identifierType"`
	Reason         string                `json:"reason"`
	Severity       domain.Severity       `json:"severity"`
	ReportedBy     string                `json:"reportedBy,omitempty"`
	ExpiresAt      *time.Time            `json:"expiresAt,omitempty"`
}

// ReportBlacklist handles POST /blacklist. Reporting an identifier
// that is already listed increments its report count.
func (h *Handler) ReportBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ReportBlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Identifier == "" || !req.IdentifierType.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "identifier and a valid identifierType are required",
		})
		return
	}
	if !req.Severity.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "severity must be low, medium, high, or critical",
		})
		return
	}

	entry := &domain.BlacklistEntry{
		ID:             uuid.New().String(),
		Identifier:     req.Identifier,
		IdentifierType: req.IdentifierType,
		Reason:         req.Reason,
		Severity:       req.Severity,
		ReportedBy:     req.ReportedBy,
		ReportCount:    1,
		IsActive:       true,
		ExpiresAt:      req.ExpiresAt,
	}

	// Repeat reports increment the count on the existing entry
	existing, err := h.repo.GetBlacklistEntry(ctx, req.Identifier, req.IdentifierType)
	if err == nil {
		entry.ID = existing.ID
		entry.ReportCount = existing.ReportCount + 1
		entry.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		slog.Error("blacklist lookup failed", "identifier", req.Identifier, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	if err := h.repo.SaveBlacklistEntry(ctx, entry); err != nil {
		slog.Error("failed to save blacklist entry", "identifier", req.Identifier, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save entry",
		})
		return
	}

	slog.Info("blacklist entry reported",
		"identifier", entry.Identifier,
		"type", entry.IdentifierType,
		"report_count", entry.ReportCount,
	)
	writeJSON(w, http.StatusCreated, entry)
}

// GetProfile retrieves a sender's behavioral profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	upi := chi.URLParam(r, "upi")

	profile, err := h.repo.GetProfile(ctx, upi)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "profile not found",
			})
			return
		}
		slog.Error("failed to get profile", "upi", upi, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// FraudStats returns aggregate statistics over processed transactions.
func (h *Handler) FraudStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.repo.FraudStats(ctx)
	if err != nil {
		slog.Error("failed to compute fraud stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
