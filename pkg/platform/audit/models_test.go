package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCategory(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  EventCategory
	}{
		{"decision defaults to compliance", Event{Action: string(EventDecisionMade)}, CategoryCompliance},
		{"explicit category wins", Event{Action: string(EventDecisionMade), Category: CategorySecurity}, CategorySecurity},
		{"rejected attestation is security", Event{Action: string(EventAttestationRejected)}, CategorySecurity},
		{"unknown action is operations", Event{Action: "something_else"}, CategoryOperations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.ResolveCategory())
		})
	}
}

func TestHashIdentifier(t *testing.T) {
	a := HashIdentifier("subject-1")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashIdentifier("subject-1"))
	assert.NotEqual(t, a, HashIdentifier("subject-2"))
	assert.NotContains(t, a, "subject")
	assert.Empty(t, HashIdentifier(""))
}
