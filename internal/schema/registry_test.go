package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akvo/ai-logbook/internal/domain"
)

func TestRequiredFieldsCoversAllRecordTypes(t *testing.T) {
	for _, rt := range domain.AllRecordTypes {
		if rt == domain.RecordTypeUnknown {
			continue
		}
		fields := RequiredFields(rt)
		assert.NotEmpty(t, fields, "record type %s should have required fields", rt)
	}
}

func TestRequiredFieldsUnknownIsEmpty(t *testing.T) {
	assert.Empty(t, RequiredFields(domain.RecordTypeUnknown))
}

func TestRequiredFieldsReturnsCopy(t *testing.T) {
	fields := RequiredFields(domain.RecordTypeChemicalSpray)
	require.NotEmpty(t, fields)
	fields[0] = "tampered"

	again := RequiredFields(domain.RecordTypeChemicalSpray)
	assert.Equal(t, "crop_variety", again[0])
}

func TestRequiredFieldsStableOrder(t *testing.T) {
	first := RequiredFields(domain.RecordTypeFertilizerApplication)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, RequiredFields(domain.RecordTypeFertilizerApplication))
	}
	assert.Equal(t, []string{
		"crop_variety",
		"plot_or_row",
		"fertilizer_name",
		"input_dealer",
		"rate",
		"farmer_perspective",
		"applied_by",
	}, first)
}

func TestIsKnownField(t *testing.T) {
	assert.True(t, IsKnownField(domain.RecordTypeChemicalSpray, "dosage"))
	assert.False(t, IsKnownField(domain.RecordTypeChemicalSpray, "fertilizer_name"))
	assert.False(t, IsKnownField(domain.RecordTypeUnknown, "anything"))
}
