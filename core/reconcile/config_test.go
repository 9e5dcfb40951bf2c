package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Options(t *testing.T) {
	cfg := Config{
		CrossRefKey:        "ref",
		IgnoreSyncKey:      "skip",
		FPSKeys:            "fps, plateFps,",
		NamePatterns:       "asset=^[a-z0-9_]+$",
		DryRun:             true,
		LockTimeoutSeconds: 5,
	}
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "ref", opts.CrossRefKey)
	assert.Equal(t, "skip", opts.IgnoreSyncKey)
	assert.Equal(t, []string{"fps", "plateFps"}, opts.FPSKeys)
	assert.Equal(t, map[string]string{"asset": "^[a-z0-9_]+$"}, opts.NamePatterns)
	assert.True(t, opts.DryRun)
	assert.Equal(t, 5*time.Second, opts.LockTimeout)

	_, err = Config{NamePatterns: "asset"}.Options()
	assert.ErrorContains(t, err, "expected kind=pattern")
}

func TestParseNamePatterns(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    map[string]string
		wantErr bool
	}{
		{"Empty", "", nil, false},
		{"Blank", "  ", nil, false},
		{"Single", "task=^[a-z]+$", map[string]string{"task": "^[a-z]+$"}, false},
		{"Multiple", "asset=^a+$, task=^t+$", map[string]string{"asset": "^a+$", "task": "^t+$"}, false},
		{"Pattern with equals", "asset=^a=b$", map[string]string{"asset": "^a=b$"}, false},
		{"Missing kind", "=^a$", nil, true},
		{"Missing pattern", "asset=", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNamePatterns(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
