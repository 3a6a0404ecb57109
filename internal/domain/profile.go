package domain

import "time"

// CityCount records how often a sender has transacted from a city.
type CityCount struct {
	City     string    `json:"city"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

// UserProfile is the behavioral baseline for a sender.
// Created lazily on first sighting; counters only ever grow.
type UserProfile struct {
	UPIAddress           string      `json:"upiAddress"`
	DisplayName          string      `json:"displayName,omitempty"`
	TrustScore           float64     `json:"trustScore"`
	TotalTransactions    int         `json:"totalTransactions"`
	TotalAmount          float64     `json:"totalAmount"`
	AvgTransactionAmount float64     `json:"avgTransactionAmount"`
	FrequentLocations    []CityCount `json:"frequentLocations,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// DefaultTrustScore is assigned to profiles created on first sighting.
const DefaultTrustScore = 50

// RecordTransaction folds one processed transaction into the baseline.
// AvgTransactionAmount is derived, never stored independently.
func (p *UserProfile) RecordTransaction(amount float64, city string, at time.Time) {
	p.TotalTransactions++
	p.TotalAmount += amount
	p.AvgTransactionAmount = p.TotalAmount / float64(p.TotalTransactions)

	if city != "" {
		found := false
		for i := range p.FrequentLocations {
			if p.FrequentLocations[i].City == city {
				p.FrequentLocations[i].Count++
				p.FrequentLocations[i].LastSeen = at
				found = true
				break
			}
		}
		if !found {
			p.FrequentLocations = append(p.FrequentLocations, CityCount{
				City:     city,
				Count:    1,
				LastSeen: at,
			})
		}
	}

	p.UpdatedAt = at
}
