//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Shikra fraud
// scoring engine against a running server.
//
// These tests exercise the complete scoring pipeline:
//
//	Transaction → Detectors (behavioral, pattern, anomaly, blacklist) → Weighted decision
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server under test is expected at SHIKRA_TEST_URL (default
// http://localhost:8080) with the builtin pattern catalog seeded, which
// happens automatically on first start against an empty database.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if url := os.Getenv("SHIKRA_TEST_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// ScoreRequest is the transaction sent to POST /transactions.
type ScoreRequest struct {
	TransactionID string   `json:"transactionId,omitempty"`
	SenderUPI     string   `json:"senderUpi"`
	ReceiverUPI   string   `json:"receiverUpi"`
	Amount        float64  `json:"amount"`
	Timestamp     string   `json:"timestamp,omitempty"`
	Status        string   `json:"status,omitempty"`
	Description   string   `json:"description,omitempty"`
	MerchantName  string   `json:"merchantName,omitempty"`
	Location      *struct {
		City string `json:"city"`
	} `json:"location,omitempty"`
}

// ScoreResponse is what POST /transactions returns.
type ScoreResponse struct {
	TransactionID string   `json:"transactionId"`
	RiskScore     float64  `json:"riskScore"`
	IsFraudulent  bool     `json:"isFraudulent"`
	Confidence    float64  `json:"confidence"`
	Reasons       []string `json:"reasons"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

func score(t *testing.T, req ScoreRequest) ScoreResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(baseURL()+"/transactions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result ScoreResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}
	return result
}

func requireServer(t *testing.T) {
	t.Helper()
	resp, err := http.Get(baseURL() + "/health")
	if err != nil {
		t.Skipf("server not reachable at %s: %v", baseURL(), err)
	}
	resp.Body.Close()
}

func uniqueUPI(prefix string) string {
	return fmt.Sprintf("%s-%d@okbank", prefix, time.Now().UnixNano())
}

func TestCleanTransaction_NotFlagged(t *testing.T) {
	// A first-time sender paying a plain receiver only trips the
	// new-user behavioral signal, which is far below the threshold.
	requireServer(t)

	result := score(t, ScoreRequest{
		SenderUPI:   uniqueUPI("customer"),
		ReceiverUPI: uniqueUPI("shop"),
		Amount:      500,
		Description: "groceries",
	})

	if result.IsFraudulent {
		t.Errorf("Expected clean decision, got fraudulent with score %.2f (%v)",
			result.RiskScore, result.Reasons)
	}
	if result.RiskScore > 30 {
		t.Errorf("Expected low risk score, got %.2f", result.RiskScore)
	}
	if result.TransactionID == "" {
		t.Error("Expected a persisted transaction id")
	}

	t.Logf("clean transaction: score=%.2f fraudulent=%v", result.RiskScore, result.IsFraudulent)
}

func TestBlacklistedReceiver_Flagged(t *testing.T) {
	// Reporting the receiver as a critical blacklist entry and matching
	// the QR swap pattern stacks two pattern-bucket signals, which is
	// enough to cross the fraud threshold on its own.
	requireServer(t)

	receiver := fmt.Sprintf("fake-merchant-%d@upi", time.Now().UnixNano())

	report, err := json.Marshal(map[string]any{
		"identifier":     receiver,
		"identifierType": "upi",
		"reason":         "confirmed mule account",
		"severity":       "critical",
	})
	if err != nil {
		t.Fatalf("Failed to marshal report: %v", err)
	}
	resp, err := http.Post(baseURL()+"/blacklist", "application/json", bytes.NewReader(report))
	if err != nil {
		t.Fatalf("Blacklist report failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 from blacklist report, got %d", resp.StatusCode)
	}

	result := score(t, ScoreRequest{
		SenderUPI:   uniqueUPI("victim"),
		ReceiverUPI: receiver,
		Amount:      4000,
	})

	if !result.IsFraudulent {
		t.Errorf("Expected fraudulent decision, got score %.2f (%v)",
			result.RiskScore, result.Reasons)
	}

	foundBlacklistReason := false
	for _, reason := range result.Reasons {
		if strings.Contains(reason, "Blacklisted receiver") {
			foundBlacklistReason = true
		}
	}
	if !foundBlacklistReason {
		t.Errorf("Expected blacklist reason, got %v", result.Reasons)
	}

	t.Logf("blacklisted receiver: score=%.2f reasons=%v", result.RiskScore, result.Reasons)
}

func TestAnomalousAmount_Scored(t *testing.T) {
	// Build a flat history of settled small payments, then send a large
	// outlier. History windows only count successful transactions, so
	// the seed requests declare status success.
	requireServer(t)

	sender := uniqueUPI("steady")
	for i := 0; i < 4; i++ {
		score(t, ScoreRequest{
			SenderUPI:   sender,
			ReceiverUPI: uniqueUPI("shop"),
			Amount:      100,
			Status:      "success",
		})
	}

	result := score(t, ScoreRequest{
		SenderUPI:   sender,
		ReceiverUPI: uniqueUPI("shop"),
		Amount:      50000,
	})

	foundAnomaly := false
	for _, reason := range result.Reasons {
		if strings.Contains(reason, "Statistical anomaly") {
			foundAnomaly = true
		}
	}
	if !foundAnomaly {
		t.Errorf("Expected statistical anomaly reason, got %v", result.Reasons)
	}

	t.Logf("outlier after settled history: score=%.2f reasons=%v", result.RiskScore, result.Reasons)
}

func TestCSVBatch_RowIsolation(t *testing.T) {
	requireServer(t)

	csvData := fmt.Sprintf(
		"senderupi,receiverupi,amount\n%s,%s,100\n%s,%s,notanumber\n%s,%s,250\n",
		uniqueUPI("b1"), uniqueUPI("r1"),
		uniqueUPI("b2"), uniqueUPI("r2"),
		uniqueUPI("b3"), uniqueUPI("r3"),
	)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "batch.csv")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	io.Copy(fw, strings.NewReader(csvData))
	mw.Close()

	resp, err := http.Post(baseURL()+"/csv-upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		TotalRows      int `json:"totalRows"`
		ProcessedCount int `json:"processedCount"`
		ErrorCount     int `json:"errorCount"`
		Results        []struct {
			Row    int    `json:"row"`
			Status string `json:"status"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode batch result: %v", err)
	}

	if result.TotalRows != 3 || result.ProcessedCount != 2 || result.ErrorCount != 1 {
		t.Errorf("Expected 3/2/1 row accounting, got %d/%d/%d",
			result.TotalRows, result.ProcessedCount, result.ErrorCount)
	}
	if len(result.Results) != 3 {
		t.Fatalf("Expected 3 row results, got %d", len(result.Results))
	}
	if result.Results[1].Status != "error" || result.Results[2].Status != "success" {
		t.Errorf("Expected the bad row isolated, got %+v", result.Results)
	}

	t.Logf("batch: %d rows, %d processed, %d errors",
		result.TotalRows, result.ProcessedCount, result.ErrorCount)
}

func TestAlertLifecycle(t *testing.T) {
	requireServer(t)

	// Force an alert through a blacklisted receiver.
	receiver := fmt.Sprintf("fake-merchant-%d@upi", time.Now().UnixNano())
	report, _ := json.Marshal(map[string]any{
		"identifier":     receiver,
		"identifierType": "upi",
		"reason":         "confirmed mule account",
		"severity":       "critical",
	})
	resp, err := http.Post(baseURL()+"/blacklist", "application/json", bytes.NewReader(report))
	if err != nil {
		t.Fatalf("Blacklist report failed: %v", err)
	}
	resp.Body.Close()

	result := score(t, ScoreRequest{
		SenderUPI:   uniqueUPI("victim"),
		ReceiverUPI: receiver,
		Amount:      4000,
	})
	if !result.IsFraudulent {
		t.Fatalf("Expected fraudulent decision to raise an alert, got %.2f", result.RiskScore)
	}

	// Find the alert for this transaction.
	listResp, err := http.Get(baseURL() + "/alerts?status=new")
	if err != nil {
		t.Fatalf("List alerts failed: %v", err)
	}
	var list struct {
		Alerts []struct {
			ID            string `json:"id"`
			TransactionID string `json:"transactionId"`
			Status        string `json:"status"`
		} `json:"alerts"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode alerts: %v", err)
	}
	listResp.Body.Close()

	alertID := ""
	for _, a := range list.Alerts {
		if a.TransactionID == result.TransactionID {
			alertID = a.ID
		}
	}
	if alertID == "" {
		t.Fatalf("No alert found for transaction %s", result.TransactionID)
	}

	transition := func(status string) int {
		body, _ := json.Marshal(map[string]string{"status": status})
		resp, err := http.Post(baseURL()+"/alerts/"+alertID+"/status", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := transition("acknowledged"); code != http.StatusOK {
		t.Errorf("Expected 200 acknowledging, got %d", code)
	}
	// Going back to new is illegal.
	if code := transition("new"); code != http.StatusConflict {
		t.Errorf("Expected 409 for illegal transition, got %d", code)
	}
	if code := transition("resolved"); code != http.StatusOK {
		t.Errorf("Expected 200 resolving, got %d", code)
	}

	t.Logf("alert %s walked new → acknowledged → resolved", alertID)
}
