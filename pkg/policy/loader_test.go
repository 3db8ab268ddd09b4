package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const customRego = `# Blocks stacks whose API prefix is reserved.
package sitestack.policies.custom

import rego.v1

deny contains violation if {
	input.stack.api_domain_prefix == "internal"
	violation := {
		"message": "API prefix 'internal' is reserved",
		"severity": "error",
		"field": "api_domain_prefix",
	}
}`

func TestLoader_LoadRegoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reserved-prefix.rego")
	if err := os.WriteFile(path, []byte(customRego), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	loader := NewLoader(testLogger())
	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}

	if len(policies) != 1 {
		t.Fatalf("loaded %d policies, want 1", len(policies))
	}

	p := policies[0]
	if p.Name != "reserved-prefix" {
		t.Errorf("Name = %q, want reserved-prefix", p.Name)
	}
	if p.Description != "Blocks stacks whose API prefix is reserved." {
		t.Errorf("Description = %q", p.Description)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("Severity = %s, want default warning", p.Severity)
	}
	if !p.Enabled {
		t.Error("loaded policies must default to enabled")
	}
}

func TestLoader_LoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")

	data, err := json.Marshal(Policy{
		Name:     "custom-json",
		Rego:     customRego,
		Severity: SeverityError,
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	loader := NewLoader(testLogger())
	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}

	if len(policies) != 1 {
		t.Fatalf("loaded %d policies, want 1", len(policies))
	}
	if policies[0].Name != "custom-json" {
		t.Errorf("Name = %q", policies[0].Name)
	}
	if policies[0].Severity != SeverityError {
		t.Errorf("Severity = %s, want error", policies[0].Severity)
	}
	if policies[0].CreatedAt.IsZero() {
		t.Error("CreatedAt default not applied")
	}
}

func TestLoader_LoadDirectory(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "a.rego"), []byte(customRego), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.rego"), []byte(customRego), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	loader := NewLoader(testLogger())
	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}

	if len(policies) != 2 {
		t.Errorf("loaded %d policies, want 2 (.txt skipped, nested dir walked)", len(policies))
	}
}

func TestLoader_MissingPath(t *testing.T) {
	loader := NewLoader(testLogger())
	if _, err := loader.LoadFromPaths(context.Background(), []string{"/no/such/path"}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestLoader_CacheAndClear(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cached.rego")
	if err := os.WriteFile(path, []byte(customRego), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	loader := NewLoader(testLogger())
	first, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}

	second, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if first != second {
		t.Error("second load must come from cache")
	}

	loader.ClearCache()
	third, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if first == third {
		t.Error("ClearCache must drop cached entries")
	}
}

func TestEngine_LoadCustomPolicy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "reserved-prefix.rego"), []byte(customRego), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := engine.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies: %v", err)
	}

	cfg := compliantStack()
	cfg.APIDomainPrefix = "internal"

	result, err := engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "reserved-prefix" {
			found = true
		}
	}
	if !found {
		t.Errorf("custom policy not evaluated, violations: %+v", result.Violations)
	}
}

const stagingRegionRego = `# Blocks staging stacks from us-east-1.
package sitestack.policies.staging_region

import rego.v1

deny contains violation if {
	input.stack.environment == "staging"
	input.stack.region == "us-east-1"
	violation := {
		"message": "staging stacks must not run in us-east-1",
		"severity": "error",
		"field": "region",
	}
}`

func TestLoader_WatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "reserved-prefix.rego"), []byte(customRego), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	loader := NewLoader(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 4)
	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		reloaded <- policies
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer loader.StopWatching()

	if err := os.WriteFile(filepath.Join(dir, "staging-region.rego"), []byte(stagingRegionRego), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	select {
	case policies := <-reloaded:
		if len(policies) != 2 {
			t.Errorf("reload delivered %d policies, want 2", len(policies))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired after file change")
	}
}

func TestEngine_WatchPolicies_CompilesNewFile(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.WatchPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("WatchPolicies: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "reserved-prefix.rego"), []byte(customRego), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := engine.GetPolicy("reserved-prefix"); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("watched policy was never compiled into the engine")
}

func TestEngine_LoadBundle(t *testing.T) {
	bundle := Bundle{
		Name:    "org-policies",
		Version: "1.0.0",
		Policies: []Policy{
			{
				Name:        "reserved-prefix",
				Description: "Blocks stacks whose API prefix is reserved.",
				Rego:        customRego,
				Severity:    SeverityError,
				Enabled:     true,
			},
		},
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}

	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := engine.LoadBundle(context.Background(), path); err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}

	p, err := engine.GetPolicy("reserved-prefix")
	if err != nil {
		t.Fatalf("GetPolicy after LoadBundle: %v", err)
	}
	if p.Severity != SeverityError {
		t.Errorf("bundle policy severity = %q, want %q", p.Severity, SeverityError)
	}

	cfg := compliantStack()
	cfg.APIDomainPrefix = "internal"

	result, err := engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Allowed {
		t.Error("bundle policy violation should block the stack")
	}
}
