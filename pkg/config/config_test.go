package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseJWKSEndpoints(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "single pair",
			input: "https://auth.example.com=https://auth.example.com/.well-known/jwks.json",
			want: map[string]string{
				"https://auth.example.com": "https://auth.example.com/.well-known/jwks.json",
			},
		},
		{
			name:  "multiple pairs with spaces",
			input: "https://a.io=https://a.io/jwks, https://b.io=https://b.io/jwks",
			want: map[string]string{
				"https://a.io": "https://a.io/jwks",
				"https://b.io": "https://b.io/jwks",
			},
		},
		{
			name:  "empty string",
			input: "",
			want:  map[string]string{},
		},
		{
			name:  "malformed pair skipped",
			input: "no-equals-sign,https://c.io=https://c.io/jwks",
			want: map[string]string{
				"https://c.io": "https://c.io/jwks",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseJWKSEndpoints(tt.input))
		})
	}
}

func TestConnectionString(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "gate",
		Password: "secret",
		Database: "querygate",
		SSLMode:  "require",
	}

	got := cfg.ConnectionString()
	assert.Equal(t, "host=db.internal port=5433 user=gate password=secret dbname=querygate sslmode=require", got)
}
