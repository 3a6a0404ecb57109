package pipeline

import (
	"encoding/json"

	"github.com/upishield/shikra/internal/domain"
)

// DecisionMessage is published on the decision topic for every
// processed transaction.
type DecisionMessage struct {
	TransactionID string             `json:"transactionId"`
	SenderUPI     string             `json:"senderUpi"`
	ReceiverUPI   string             `json:"receiverUpi"`
	Amount        float64            `json:"amount"`
	Assessment    *domain.Assessment `json:"assessment"`
}

func encodeDecision(record *domain.Transaction, assessment *domain.Assessment) ([]byte, error) {
	return json.Marshal(DecisionMessage{
		TransactionID: record.ID,
		SenderUPI:     record.SenderUPI,
		ReceiverUPI:   record.ReceiverUPI,
		Amount:        record.Amount,
		Assessment:    assessment,
	})
}

func encodeAlert(alert *domain.FraudAlert) ([]byte, error) {
	return json.Marshal(alert)
}

// IngestMessage is the payload consumed from the transaction-ingested
// topic by the async worker.
type IngestMessage struct {
	TransactionID string             `json:"transactionId,omitempty"`
	SenderUPI     string             `json:"senderUpi"`
	ReceiverUPI   string             `json:"receiverUpi"`
	Amount        float64            `json:"amount"`
	Timestamp     string             `json:"timestamp,omitempty"`
	Status        string             `json:"status,omitempty"`
	Description   string             `json:"description,omitempty"`
	MerchantName  string             `json:"merchantName,omitempty"`
	City          string             `json:"city,omitempty"`
	DeviceInfo    *domain.DeviceInfo `json:"deviceInfo,omitempty"`
}
