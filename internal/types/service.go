package types

import "time"

// ServiceRecord is one service episode for a contact. It is opened the
// moment an attendant is matched and closed by the close workflow, which
// stamps the end time and duration. At most one record per contact is
// open at any time.
type ServiceRecord struct {
	Code      string     `json:"code"`
	Contact   string     `json:"contact"`
	Sector    Sector     `json:"sector"`
	Attendant string     `json:"attendant,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	// DurationSecs is derived when the record is closed
	DurationSecs float64 `json:"durationSecs,omitempty"`
}

// ServiceRecordItem is the flattened form of a closed ServiceRecord for
// DynamoDB persistence
type ServiceRecordItem struct {
	DateKey      string  `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	Code         string  `json:"code" dynamodbav:"Code"`       // sort key
	Contact      string  `json:"contact" dynamodbav:"Contact"`
	Sector       string  `json:"sector" dynamodbav:"Sector"`
	Attendant    string  `json:"attendant" dynamodbav:"Attendant"`
	StartedAt    string  `json:"startedAt" dynamodbav:"StartedAt"` // RFC3339
	EndedAt      string  `json:"endedAt" dynamodbav:"EndedAt"`     // RFC3339
	DurationSecs float64 `json:"durationSecs" dynamodbav:"DurationSecs"`
}

// Item converts a closed record to its persistence form
func (r ServiceRecord) Item() ServiceRecordItem {
	item := ServiceRecordItem{
		DateKey:      r.StartedAt.Format("2006-01-02"),
		Code:         r.Code,
		Contact:      r.Contact,
		Sector:       string(r.Sector),
		Attendant:    r.Attendant,
		StartedAt:    r.StartedAt.Format(time.RFC3339),
		DurationSecs: r.DurationSecs,
	}
	if r.EndedAt != nil {
		item.EndedAt = r.EndedAt.Format(time.RFC3339)
	}
	return item
}

// Evaluation is an immutable 1-5 rating tied to a closed service episode
type Evaluation struct {
	Contact   string `json:"contact" dynamodbav:"Contact"`
	Attendant string `json:"attendant" dynamodbav:"Attendant"` // partition key
	Sector    string `json:"sector" dynamodbav:"Sector"`
	Code      string `json:"code" dynamodbav:"Code"` // service code, sort key
	Score     int    `json:"score" dynamodbav:"Score"`
	CreatedAt string `json:"createdAt" dynamodbav:"CreatedAt"` // RFC3339
}

// MessageRecord is one audited inbound or outbound message
type MessageRecord struct {
	DateKey     string `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	ID          string `json:"id" dynamodbav:"ID"`           // sort key
	Contact     string `json:"contact" dynamodbav:"Contact"`
	Direction   string `json:"direction" dynamodbav:"Direction"` // "inbound" or "outbound"
	Body        string `json:"body" dynamodbav:"Body"`
	MediaKind   string `json:"mediaKind,omitempty" dynamodbav:"MediaKind"`
	MediaRef    string `json:"mediaRef,omitempty" dynamodbav:"MediaRef"`
	DisplayName string `json:"displayName,omitempty" dynamodbav:"DisplayName"`
	Timestamp   string `json:"timestamp" dynamodbav:"Timestamp"` // RFC3339
}

// Message audit directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)
