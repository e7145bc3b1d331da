package server_test

import (
	"testing"

	"relation-manager/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       server.Config
		address   string
		protected bool
	}{
		{"Default", server.Config{Port: "8080"}, ":8080", false},
		{"With Key", server.Config{Port: "9090", ApiKey: "secret"}, ":9090", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.address, tt.cfg.Address())
			assert.Equal(t, tt.protected, tt.cfg.IsProtected())
		})
	}
}
