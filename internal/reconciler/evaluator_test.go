package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/schema"
)

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestEvaluateEmptyDataMissesEverything(t *testing.T) {
	for _, rt := range domain.AllRecordTypes {
		if rt == domain.RecordTypeUnknown {
			continue
		}
		missing, needsFollowup := Evaluate(rt, nil, domain.RecordData{})
		require.True(t, needsFollowup, "type %s", rt)

		want := append([]string{FieldOccurredAt}, schema.RequiredFields(rt)...)
		assert.Equal(t, want, missing, "type %s", rt)
	}
}

func TestEvaluateOccurredAtComesFirst(t *testing.T) {
	missing, _ := Evaluate(domain.RecordTypeChemicalDisposal, nil, domain.RecordData{
		"chemical_name": "Glyphosate",
	})
	require.NotEmpty(t, missing)
	assert.Equal(t, FieldOccurredAt, missing[0])
	assert.Equal(t, []string{FieldOccurredAt, "disposal_date", "disposal_method"}, missing)
}

func TestEvaluateFullDataConfirms(t *testing.T) {
	data := domain.RecordData{}
	for _, f := range schema.RequiredFields(domain.RecordTypeChemicalDisposal) {
		data[f] = "value"
	}
	missing, needsFollowup := Evaluate(domain.RecordTypeChemicalDisposal, datePtr("2026-08-01"), data)
	assert.Empty(t, missing)
	assert.False(t, needsFollowup)
	assert.True(t, CanConfirm(domain.RecordTypeChemicalDisposal, datePtr("2026-08-01"), data))
}

func TestEvaluateEmptyValuesCountAsMissing(t *testing.T) {
	data := domain.RecordData{
		"chemical_name":   "",
		"disposal_date":   nil,
		"disposal_method": []any{},
	}
	missing, needsFollowup := Evaluate(domain.RecordTypeChemicalDisposal, datePtr("2026-08-01"), data)
	assert.True(t, needsFollowup)
	assert.Equal(t, []string{"chemical_name", "disposal_date", "disposal_method"}, missing)
}

func TestEvaluateOrderIndependentOfDataInsertion(t *testing.T) {
	a := domain.RecordData{"rate": "50kg/acre", "crop_variety": "tomato"}
	b := domain.RecordData{"crop_variety": "tomato", "rate": "50kg/acre"}

	missA, _ := Evaluate(domain.RecordTypeFertilizerApplication, nil, a)
	missB, _ := Evaluate(domain.RecordTypeFertilizerApplication, nil, b)
	assert.Equal(t, missA, missB)
}

func TestEvaluateIdempotent(t *testing.T) {
	data := domain.RecordData{"crop": "maize", "water_amount": "200L"}
	first, _ := Evaluate(domain.RecordTypeIrrigation, nil, data)
	second, _ := Evaluate(domain.RecordTypeIrrigation, nil, data)
	assert.Equal(t, first, second)
}

func TestEvaluateUnknownNeverRequiresAnything(t *testing.T) {
	missing, needsFollowup := Evaluate(domain.RecordTypeUnknown, nil, domain.RecordData{"whatever": "x"})
	assert.Empty(t, missing)
	assert.False(t, needsFollowup)
}
