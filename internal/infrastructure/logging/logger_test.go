package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "production", cfg: DefaultConfig()},
		{name: "development", cfg: Config{Level: "debug", Development: true}},
		{name: "empty level defaults to info", cfg: Config{}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger.Logger)
		})
	}
}

func TestNewFromSettingsFallsBackToNop(t *testing.T) {
	logger := NewFromSettings("not-a-level", false)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewFromSettingsLevel(t *testing.T) {
	logger := NewFromSettings("warn", false)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNamed(t *testing.T) {
	logger := NewNop().Named("proxy")
	assert.NotNil(t, logger)
}
