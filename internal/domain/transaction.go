// Package domain defines the core types and interfaces for Shikra.
package domain

import (
	"time"
)

// Location is an optional geographic hint attached to a transaction.
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
	City string  `json:"city"`
}

// DeviceInfo describes the device a transaction originated from.
type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	OS         string `json:"os"`
	AppVersion string `json:"appVersion"`
}

// TransactionContext is the immutable input to fraud detection.
// It is never persisted directly; the pipeline derives a Transaction
// record from it after scoring.
type TransactionContext struct {
	SenderUPI   string    `json:"senderUpi"`
	ReceiverUPI string    `json:"receiverUpi"`
	Amount      float64   `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`

	Location     *Location   `json:"location,omitempty"`
	DeviceInfo   *DeviceInfo `json:"deviceInfo,omitempty"`
	MerchantName string      `json:"merchantName,omitempty"`
	Description  string      `json:"description,omitempty"`

	// Status is the settlement state reported by the ingesting client.
	// Empty means pending. Settled ("success") transactions feed the
	// detectors' history baselines.
	Status string `json:"status,omitempty"`
}

// Transaction statuses.
const (
	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
	TxStatusBlocked = "blocked"
)

// ValidTxStatus reports whether s is a recognized transaction status.
func ValidTxStatus(s string) bool {
	switch s {
	case TxStatusPending, TxStatusSuccess, TxStatusFailed, TxStatusBlocked:
		return true
	}
	return false
}

// Transaction is a persisted funds transfer with its scoring outcome.
type Transaction struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"` // external/synthetic reference
	SenderUPI     string    `json:"senderUpi"`
	ReceiverUPI   string    `json:"receiverUpi"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	Description   string    `json:"description,omitempty"`

	RiskScore     float64 `json:"riskScore"`
	IsFraudulent  bool    `json:"isFraudulent"`
	FlaggedReason string  `json:"flaggedReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
