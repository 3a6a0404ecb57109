package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/upishield/shikra/internal/domain"
)

// RowResult is the per-row outcome of a batch run. Either the success
// fields or Error is populated, never both.
type RowResult struct {
	Row           int      `json:"row"`
	SenderUPI     string   `json:"senderUpi,omitempty"`
	ReceiverUPI   string   `json:"receiverUpi,omitempty"`
	Amount        float64  `json:"amount,omitempty"`
	RiskScore     float64  `json:"riskScore,omitempty"`
	IsFraudulent  bool     `json:"isFraudulent,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
	Status        string   `json:"status"`
	TransactionID string   `json:"transactionId,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// BatchSummary aggregates the successful rows of a batch.
type BatchSummary struct {
	FraudulentCount int     `json:"fraudulentCount"`
	CleanCount      int     `json:"cleanCount"`
	AvgRiskScore    float64 `json:"avgRiskScore"`
}

// BatchResult is the batch pipeline output. ProcessedCount+ErrorCount
// always equals TotalRows; rows are never silently dropped.
type BatchResult struct {
	FileName       string       `json:"fileName,omitempty"`
	TotalRows      int          `json:"totalRows"`
	ProcessedCount int          `json:"processedCount"`
	ErrorCount     int          `json:"errorCount"`
	Results        []RowResult  `json:"results"`
	Summary        BatchSummary `json:"summary"`
}

// Row statuses.
const (
	RowStatusSuccess = "success"
	RowStatusError   = "error"
)

// ProcessBatch scores parsed rows strictly in order. One row's failure
// never prevents subsequent rows from being processed, and result
// ordering matches input ordering.
func (p *Processor) ProcessBatch(ctx context.Context, rows *Rows) *BatchResult {
	batchRef := uuid.New().String()[:8]

	result := &BatchResult{
		TotalRows: len(rows.Records),
		Results:   make([]RowResult, 0, len(rows.Records)),
	}

	var riskSum float64

	for _, row := range rows.Records {
		slog.Debug("batch processing row", "row", row.Line, "total", len(rows.Records))

		rowResult, err := p.processRow(ctx, batchRef, row)
		if err != nil {
			result.ErrorCount++
			result.Results = append(result.Results, RowResult{
				Row:    row.Line,
				Status: RowStatusError,
				Error:  err.Error(),
			})
			continue
		}

		result.ProcessedCount++
		riskSum += rowResult.RiskScore
		if rowResult.IsFraudulent {
			result.Summary.FraudulentCount++
		} else {
			result.Summary.CleanCount++
		}
		result.Results = append(result.Results, *rowResult)
	}

	// No successful rows means no meaningful average.
	if result.ProcessedCount > 0 {
		result.Summary.AvgRiskScore = math.Round(riskSum/float64(result.ProcessedCount)*100) / 100
	}

	slog.Info("batch processed",
		"batch", batchRef,
		"total_rows", result.TotalRows,
		"processed", result.ProcessedCount,
		"errors", result.ErrorCount,
		"fraudulent", result.Summary.FraudulentCount,
	)

	return result
}

func (p *Processor) processRow(ctx context.Context, batchRef string, row Row) (*RowResult, error) {
	sender := row.Fields["senderupi"]
	receiver := row.Fields["receiverupi"]
	if sender == "" || receiver == "" {
		return nil, fmt.Errorf("senderupi and receiverupi are required")
	}

	amount, err := strconv.ParseFloat(row.Fields["amount"], 64)
	if err != nil || math.IsNaN(amount) || amount <= 0 {
		return nil, fmt.Errorf("invalid amount %q", row.Fields["amount"])
	}

	tx := &domain.TransactionContext{
		SenderUPI:    sender,
		ReceiverUPI:  receiver,
		Amount:       amount,
		Timestamp:    parseRowTimestamp(row.Fields["timestamp"]),
		Status:       row.Fields["status"],
		MerchantName: row.Fields["merchantname"],
		Description:  rowDescription(row.Fields),
	}
	if city := row.Fields["city"]; city != "" {
		tx.Location = &domain.Location{City: city}
	}

	txID := fmt.Sprintf("CSV-%s-%d", batchRef, row.Line)
	processed, err := p.Process(ctx, tx, txID)
	if err != nil {
		return nil, err
	}

	return &RowResult{
		Row:           row.Line,
		SenderUPI:     sender,
		ReceiverUPI:   receiver,
		Amount:        amount,
		RiskScore:     processed.Assessment.RiskScore,
		IsFraudulent:  processed.Assessment.IsFraudulent,
		Reasons:       processed.Assessment.AllReasons,
		Status:        RowStatusSuccess,
		TransactionID: processed.Transaction.ID,
	}, nil
}

func rowDescription(fields map[string]string) string {
	if d := fields["description"]; d != "" {
		return d
	}
	return fields["remarks"]
}

func parseRowTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}
