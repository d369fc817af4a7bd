package domain

import "time"

// Profile describes the reader whose interests drive relevance scoring.
// Profiles are upserted idempotently keyed by email.
type Profile struct {
	ID           int64
	Name         string
	Email        string
	Interests    []string
	MinRelevance float64
	MinQuality   float64
}

// InterestText joins the interest phrases into the free-text form consumed by
// delegated relevance scoring.
func (p Profile) InterestText() string {
	text := ""
	for i, interest := range p.Interests {
		if i > 0 {
			text += "; "
		}
		text += interest
	}
	return text
}

// DeliveryStatus enumerates outcomes of a digest delivery attempt.
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryPrinted DeliveryStatus = "printed"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryRecord is the append-only evidence that a set of papers was presented
// to a profile. Any paper id appearing in a record is permanently excluded from
// future digests for that profile.
type DeliveryRecord struct {
	ID        int64
	ProfileID int64
	PaperIDs  []int64
	Status    DeliveryStatus
	CreatedAt time.Time
}
