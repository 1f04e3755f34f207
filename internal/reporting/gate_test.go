package reporting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

func TestEvaluateGate(t *testing.T) {
	t.Parallel()

	ciGate := config.GateConfig{
		Enabled:     true,
		MaxCritical: 0,
		MaxSerious:  2,
		MaxModerate: -1,
		MaxMinor:    -1,
	}

	testCases := []struct {
		name    string
		cfg     config.GateConfig
		summary map[schemas.Severity]int
		wantErr bool
	}{
		{
			name:    "disabled gate never fails",
			cfg:     config.GateConfig{Enabled: false, MaxCritical: 0},
			summary: map[schemas.Severity]int{schemas.SeverityCritical: 99},
			wantErr: false,
		},
		{
			name:    "clean run passes",
			cfg:     ciGate,
			summary: map[schemas.Severity]int{},
			wantErr: false,
		},
		{
			name:    "counts at budget pass",
			cfg:     ciGate,
			summary: map[schemas.Severity]int{schemas.SeveritySerious: 2},
			wantErr: false,
		},
		{
			name:    "critical over budget fails",
			cfg:     ciGate,
			summary: map[schemas.Severity]int{schemas.SeverityCritical: 1},
			wantErr: true,
		},
		{
			name:    "unlimited tier never fails",
			cfg:     ciGate,
			summary: map[schemas.Severity]int{schemas.SeverityModerate: 500, schemas.SeverityMinor: 500},
			wantErr: false,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := EvaluateGate(tc.cfg, tc.summary)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateGateReportsEveryBreach(t *testing.T) {
	t.Parallel()
	cfg := config.GateConfig{Enabled: true, MaxCritical: 0, MaxSerious: 0, MaxModerate: -1, MaxMinor: -1}
	summary := map[schemas.Severity]int{
		schemas.SeverityCritical: 2,
		schemas.SeveritySerious:  3,
	}

	err := EvaluateGate(cfg, summary)
	require.Error(t, err)

	var gateErr *GateError
	require.True(t, errors.As(err, &gateErr))
	assert.Len(t, gateErr.Breaches, 2)
	assert.Contains(t, err.Error(), "critical: 2 found, 0 allowed")
	assert.Contains(t, err.Error(), "serious: 3 found, 0 allowed")
}
