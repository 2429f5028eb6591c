package db

import (
	"testing"

	"github.com/lumenhq/dam/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDSNFor(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseCfg
		want string
	}{
		{
			name: "tls off keeps dsn",
			cfg:  config.DatabaseCfg{DSN: "host=db sslmode=disable"},
			want: "host=db sslmode=disable",
		},
		{
			name: "tls on replaces sslmode",
			cfg:  config.DatabaseCfg{DSN: "host=db sslmode = disable port=5432", EnableTLS: true},
			want: "host=db sslmode=require port=5432",
		},
		{
			name: "tls on appends sslmode",
			cfg:  config.DatabaseCfg{DSN: "host=db", EnableTLS: true},
			want: "host=db sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dsnFor(tt.cfg))
		})
	}
}
