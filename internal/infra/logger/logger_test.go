package logger

import (
	"path/filepath"
	"testing"

	"github.com/lumenhq/dam/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.LogCfg
		wantErr bool
	}{
		{
			name: "defaults to info on console",
			cfg:  config.LogCfg{},
		},
		{
			name: "console format",
			cfg:  config.LogCfg{Level: "debug", Format: "console", Output: "console"},
		},
		{
			name: "rotating file",
			cfg: config.LogCfg{
				Level:  "warn",
				Format: "json",
				Output: "file",
				File:   config.LogFileCfg{Filename: filepath.Join(dir, "a", "ingest.log"), MaxSize: 1},
			},
		},
		{
			name: "both outputs with stacktrace",
			cfg: config.LogCfg{
				Level:            "error",
				Output:           "both",
				EnableStacktrace: true,
				File:             config.LogFileCfg{Filename: filepath.Join(dir, "b.log")},
			},
		},
		{
			name:    "invalid level",
			cfg:     config.LogCfg{Level: "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
			log.Info("hello")
		})
	}
}
