// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaultConfig() should validate, got: %v", err)
	}
}

func TestValidateRedisURL(t *testing.T) {
	cases := []struct {
		url     string
		wantErr bool
	}{
		{"redis://localhost:6379/0", false},
		{"rediss://redis.internal:6380/1", false},
		{"unix:///var/run/redis.sock", false},
		{"http://localhost:6379", true},
		{"not-a-url-at-all://", true},
		{"redis://", true},
	}
	for _, c := range cases {
		err := validateRedisURL(c.url)
		if (err != nil) != c.wantErr {
			t.Errorf("validateRedisURL(%q) error = %v, wantErr %v", c.url, err, c.wantErr)
		}
	}
}

func TestValidateScalingThresholdOrdering(t *testing.T) {
	cfg := defaultConfig()
	cfg.Scaling.ScaleUpThreshold = 0.2
	cfg.Scaling.ScaleDownThreshold = 0.3
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when scale_up_threshold <= scale_down_threshold")
	}
}

func TestValidateQueueRetryDelaysRejectsNegative(t *testing.T) {
	cfg := defaultConfig()
	cfg.Queue.RetryDelays = []float64{1.0, -5.0}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative retry delay")
	}
}

func TestServerIsProduction(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Server.IsProduction() {
		t.Error("default environment should not be production")
	}
	cfg.Server.Environment = "production"
	if !cfg.Server.IsProduction() {
		t.Error("expected IsProduction() true after setting environment=production")
	}
}
