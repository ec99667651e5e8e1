package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akvo/ai-logbook/internal/domain"
)

func TestMergeDoesNotEraseExistingFields(t *testing.T) {
	existing := domain.RecordData{
		"chemical_name": "BioGuard",
		"dosage":        "500ml",
	}
	incoming := domain.RecordData{
		"chemical_name": "",
		"dosage":        nil,
		"sprayed_by":    "John",
	}
	merged := Merge(domain.RecordTypeChemicalSpray, existing, incoming)

	assert.Equal(t, "BioGuard", merged["chemical_name"])
	assert.Equal(t, "500ml", merged["dosage"])
	assert.Equal(t, "John", merged["sprayed_by"])
}

func TestMergeIncomingOverwrites(t *testing.T) {
	existing := domain.RecordData{"dosage": "500ml"}
	incoming := domain.RecordData{"dosage": "750ml"}
	merged := Merge(domain.RecordTypeChemicalSpray, existing, incoming)
	assert.Equal(t, "750ml", merged["dosage"])
}

func TestMergeDropsUnregisteredFields(t *testing.T) {
	incoming := domain.RecordData{
		"dosage":         "500ml",
		"favorite_color": "blue",
	}
	merged := Merge(domain.RecordTypeChemicalSpray, nil, incoming)
	assert.Equal(t, "500ml", merged["dosage"])
	assert.NotContains(t, merged, "favorite_color")
}

func TestMergeUnknownTypeKeepsPayload(t *testing.T) {
	incoming := domain.RecordData{"anything": "goes", "raw": 42}
	merged := Merge(domain.RecordTypeUnknown, nil, incoming)
	assert.Equal(t, incoming, merged)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	existing := domain.RecordData{"dosage": "500ml"}
	incoming := domain.RecordData{"sprayed_by": "John"}
	_ = Merge(domain.RecordTypeChemicalSpray, existing, incoming)

	assert.Equal(t, domain.RecordData{"dosage": "500ml"}, existing)
	assert.Equal(t, domain.RecordData{"sprayed_by": "John"}, incoming)
}

func TestMergeAssociative(t *testing.T) {
	a := domain.RecordData{"chemical_name": "BioGuard"}
	b := domain.RecordData{"dosage": "500ml"}
	c := domain.RecordData{"dosage": "750ml", "sprayed_by": "John"}

	stepwise := Merge(domain.RecordTypeChemicalSpray, Merge(domain.RecordTypeChemicalSpray, a, b), c)
	folded := Merge(domain.RecordTypeChemicalSpray, a, Merge(domain.RecordTypeChemicalSpray, b, c))
	assert.Equal(t, stepwise, folded)
}
