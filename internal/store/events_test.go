package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
)

func TestRecordConfirmedPublishesToStream(t *testing.T) {
	mr, client := setupRedis(t)
	pub := NewEventPublisher(client, zap.NewNop())

	occurredAt := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	record := &domain.Record{
		RecordID:   "rec-1",
		FarmerID:   "farmer-1",
		RecordType: domain.RecordTypeChemicalDisposal,
		OccurredAt: &occurredAt,
		Data: domain.RecordData{
			"chemical_name":   "Glyphosate",
			"disposal_date":   "2026-08-10",
			"disposal_method": "buried",
		},
		Confidence: 0.92,
		Confirmed:  true,
	}

	require.NoError(t, pub.RecordConfirmed(context.Background(), record))

	entries, err := mr.Stream(ConfirmedStream)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	fields := map[string]string{}
	for i := 0; i+1 < len(entries[0].Values); i += 2 {
		fields[entries[0].Values[i]] = entries[0].Values[i+1]
	}
	assert.Equal(t, "rec-1", fields["record_id"])
	assert.Equal(t, "farmer-1", fields["farmer_id"])
	assert.Equal(t, "chemical_disposal", fields["record_type"])
	assert.Equal(t, "2026-08-10", fields["occurred_at"])
	assert.Contains(t, fields["data"], "Glyphosate")
}

func TestRecordConfirmedWithoutOccurredAt(t *testing.T) {
	mr, client := setupRedis(t)
	pub := NewEventPublisher(client, zap.NewNop())

	record := &domain.Record{
		RecordID:   "rec-2",
		FarmerID:   "farmer-1",
		RecordType: domain.RecordTypeUnknown,
		Data:       domain.RecordData{},
	}
	require.NoError(t, pub.RecordConfirmed(context.Background(), record))

	entries, err := mr.Stream(ConfirmedStream)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
