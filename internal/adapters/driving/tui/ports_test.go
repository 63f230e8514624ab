package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name  string
		ports *Ports
		err   error
	}{
		{"nil ports", nil, ErrMissingInsightService},
		{"missing insights", &Ports{Ingest: &MockIngestService{}}, ErrMissingInsightService},
		{"missing ingest", &Ports{Insights: &MockInsightService{}}, ErrMissingIngestService},
		{"complete", &Ports{Insights: &MockInsightService{}, Ingest: &MockIngestService{}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.ports.Validate(), tt.err)
			if tt.err == nil {
				assert.NoError(t, tt.ports.Validate())
			}
		})
	}
}
