package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("BSCSCAN_API_KEY", "legacy")
	t.Setenv("SIGNING_KEY", "abc")
	t.Setenv("SCAN_DEADLINE", "45s")
	t.Setenv("TASK_TIMEOUT", "12")
	t.Setenv("STUB_GROUP_MEMBERS", "750")
	t.Setenv("USE_IPFS", "yes-please")

	c := Load()
	if c.ExplorerAPIKey != "legacy" {
		t.Errorf("ExplorerAPIKey = %q, want legacy fallback", c.ExplorerAPIKey)
	}
	if c.ScanDeadline != 45*time.Second || c.TaskTimeout != 12*time.Second || c.ProviderTimeout != 5*time.Second {
		t.Errorf("budgets = %s/%s/%s", c.ScanDeadline, c.TaskTimeout, c.ProviderTimeout)
	}
	if c.StubGroupMembers != 750 {
		t.Errorf("StubGroupMembers = %d", c.StubGroupMembers)
	}
	if c.UseIPFS {
		t.Error("unparseable USE_IPFS should fall back to the default")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		HMACSecret:      "s",
		ScanDeadline:    30 * time.Second,
		TaskTimeout:     10 * time.Second,
		ProviderTimeout: 5 * time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no signing key", func(c *Config) { c.HMACSecret = "" }, "SIGNING_KEY"},
		{"task not shorter than deadline", func(c *Config) { c.TaskTimeout = 30 * time.Second }, "TASK_TIMEOUT"},
		{"provider exceeds task", func(c *Config) { c.ProviderTimeout = 11 * time.Second }, "PROVIDER_TIMEOUT"},
		{"negative stub", func(c *Config) { c.StubGroupMembers = -1 }, "STUB_GROUP_MEMBERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
