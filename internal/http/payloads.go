package httpapi

import (
	"time"

	"github.com/akvo/ai-logbook/internal/domain"
)

// farmerPayload 农户 API 响应体
type farmerPayload struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toFarmerPayload(f *domain.Farmer) farmerPayload {
	return farmerPayload{
		ID:          f.FarmerID,
		ExternalID:  f.ExternalID,
		Name:        f.Name,
		PhoneNumber: f.PhoneNumber,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// recordPayload 记录 API 响应体
type recordPayload struct {
	ID              string            `json:"id"`
	FarmerID        string            `json:"farmer_id"`
	MessageID       string            `json:"message_id,omitempty"`
	RecordType      string            `json:"record_type"`
	OccurredAt      *string           `json:"occurred_at"`
	Data            domain.RecordData `json:"data"`
	SourceChannel   string            `json:"source_channel"`
	SourceInputMode string            `json:"source_input_mode"`
	SourceLanguage  string            `json:"source_language"`
	Confidence      float64           `json:"confidence"`
	MissingFields   []string          `json:"missing_fields"`
	NeedsFollowup   bool              `json:"needs_followup"`
	Confirmed       bool              `json:"confirmed"`
	QualityNotes    string            `json:"quality_notes,omitempty"`
	RawTranscript   string            `json:"raw_transcript,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

func toRecordPayload(r *domain.Record) recordPayload {
	var occurredAt *string
	if r.OccurredAt != nil {
		s := r.OccurredAt.Format("2006-01-02")
		occurredAt = &s
	}
	return recordPayload{
		ID:              r.RecordID,
		FarmerID:        r.FarmerID,
		MessageID:       r.MessageID,
		RecordType:      string(r.RecordType),
		OccurredAt:      occurredAt,
		Data:            r.Data,
		SourceChannel:   r.SourceChannel,
		SourceInputMode: r.SourceInputMode,
		SourceLanguage:  r.SourceLanguage,
		Confidence:      r.Confidence,
		MissingFields:   r.MissingFields,
		NeedsFollowup:   r.NeedsFollowup,
		Confirmed:       r.Confirmed,
		QualityNotes:    r.QualityNotes,
		RawTranscript:   r.RawTranscript,
		CreatedAt:       r.CreatedAt,
	}
}

func toRecordPayloads(records []*domain.Record) []recordPayload {
	out := make([]recordPayload, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordPayload(r))
	}
	return out
}
