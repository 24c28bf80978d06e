package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cypherlabdev/kalshi-best-bets/internal/config"
)

// TestRun_InvalidFlags tests that bad input exits 1 before any fetch
func TestRun_InvalidFlags(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"--nope"}},
		{name: "malformed date", args: []string{"--date", "03/07/2026", "--out-dir", dir}},
		{name: "share factor out of range", args: []string{"--share-factor", "1.5", "--out-dir", dir}},
		{name: "negative top", args: []string{"--top", "-1", "--out-dir", dir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 1, run(tt.args))
		})
	}
}

// TestRun_Help tests that --help is not a failure
func TestRun_Help(t *testing.T) {
	assert.Equal(t, 0, run([]string{"--help"}))
}

// TestNewNormalizer tests that configured tables extend the built-in ones
func TestNewNormalizer(t *testing.T) {
	n := newNormalizer(&config.Tables{
		Abbreviations: map[string]string{"SMC": "Saint Mary's"},
		Mascots:       []string{"Hoyas"},
	})

	assert.Equal(t, "saint marys", n.Normalize("SMC Gaels"))
	assert.Equal(t, "georgetown", n.Normalize("Georgetown Hoyas"))
	assert.Equal(t, "connecticut", n.Normalize("UConn"))
}
