package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeActivationFlagsOnly(t *testing.T) {
	raw := map[string]interface{}{
		"is_active":      false,
		"has_preference": true,
		"has_documents":  false,
		"has_price":      true,
	}

	status := NormalizeActivation(raw)

	assert.False(t, status.IsActive)
	assert.Empty(t, status.Missing)
	assert.Equal(t, map[StepID]bool{
		StepPreferences: true,
		StepDocuments:   false,
		StepPrice:       true,
	}, status.Flags)
}

func TestNormalizeActivationMissingListOnly(t *testing.T) {
	raw := map[string]interface{}{
		"is_active": false,
		"missing":   []interface{}{"documents", "wallet"},
	}

	status := NormalizeActivation(raw)

	assert.Equal(t, []StepID{StepDocuments, StepWallet}, status.Missing)
	assert.Empty(t, status.Flags)
}

func TestNormalizeActivationHeterogeneousKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
		want StepID
	}{
		{"camel case flag", map[string]interface{}{"hasDocuments": false}, StepDocuments},
		{"bare step name", map[string]interface{}{"documents": false}, StepDocuments},
		{"schedule alias", map[string]interface{}{"has_schedule": false}, StepAvailability},
		{"payment method alias", map[string]interface{}{"payment_method": false}, StepWallet},
		{"singular missing entry", map[string]interface{}{"missing_steps": []interface{}{"document"}}, StepDocuments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NormalizeActivation(tt.raw)
			step, ok := status.NextStep()
			require.True(t, ok)
			assert.Equal(t, tt.want, step)
		})
	}
}

func TestPendingUnionPrecedence(t *testing.T) {
	// flags say documents is complete, the missing list disagrees: either
	// source marking a step incomplete makes it pending
	status := ActivationStatus{
		Missing: []StepID{StepDocuments},
		Flags:   map[StepID]bool{StepDocuments: true},
	}

	assert.True(t, status.Pending()[StepDocuments])

	// and the reverse: empty missing list, flag says incomplete
	status = ActivationStatus{
		Missing: []StepID{},
		Flags:   map[StepID]bool{StepDocuments: false},
	}
	assert.Equal(t, RouteForStep(StepDocuments), status.NextRoute())
}

func TestNextStepFixedOrdering(t *testing.T) {
	status := ActivationStatus{
		Missing: []StepID{StepWallet, StepPreferences},
	}

	step, ok := status.NextStep()
	require.True(t, ok)
	assert.Equal(t, StepPreferences, step, "earliest step in canonical order wins regardless of backend order")
}

func TestNextStepActive(t *testing.T) {
	status := ActivationStatus{IsActive: true}

	_, ok := status.NextStep()
	assert.False(t, ok)
	assert.Equal(t, RouteTeacherHome, status.NextRoute())
}

func TestNextStepNothingPendingButInactive(t *testing.T) {
	status := ActivationStatus{
		Flags: map[StepID]bool{
			StepPreferences:  true,
			StepDocuments:    true,
			StepPrice:        true,
			StepVideo:        true,
			StepAvailability: true,
			StepWallet:       true,
		},
	}

	step, ok := status.NextStep()
	require.True(t, ok)
	assert.Equal(t, StepActivate, step)
}

func TestOnboardingProgression(t *testing.T) {
	first := NormalizeActivation(map[string]interface{}{
		"is_active":      false,
		"has_preference": true,
		"has_documents":  false,
		"missing":        []interface{}{},
	})
	assert.Equal(t, RouteForStep(StepDocuments), first.NextRoute())

	// after completing documents, a forced re-check reports the next gap
	second := NormalizeActivation(map[string]interface{}{
		"is_active":      false,
		"has_preference": true,
		"has_documents":  true,
		"has_price":      false,
	})
	assert.Equal(t, RouteForStep(StepPrice), second.NextRoute())
}
