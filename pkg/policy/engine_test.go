package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sitestack/sitestack/pkg/stack"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func compliantStack() *stack.StackConfig {
	return &stack.StackConfig{
		Name:            "acme-site",
		Environment:     "prod",
		Region:          "eu-west-1",
		DomainName:      "acme.io",
		APIDomainPrefix: "api",
		Tags: map[string]string{
			"owner":       "platform",
			"cost-center": "cc-1234",
		},
	}
}

func TestNewEngine_LoadsBuiltinPolicies(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	policies := engine.ListPolicies()
	if len(policies) != len(GetBuiltinPolicies()) {
		t.Errorf("loaded %d policies, want %d", len(policies), len(GetBuiltinPolicies()))
	}

	for _, name := range []string{"region-allowlist", "stack-naming", "required-tags", "production-safeguards", "bucket-conventions"} {
		if _, err := engine.GetPolicy(name); err != nil {
			t.Errorf("GetPolicy(%q): %v", name, err)
		}
	}
}

func TestEvaluate_CompliantStack(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := engine.Evaluate(context.Background(), compliantStack(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !result.Allowed {
		t.Errorf("compliant stack not allowed, violations: %+v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("unexpected violations: %+v", result.Violations)
	}
	if len(result.EvaluatedPolicies) != len(GetBuiltinPolicies()) {
		t.Errorf("evaluated %d policies, want %d", len(result.EvaluatedPolicies), len(GetBuiltinPolicies()))
	}
}

func TestEvaluate_DisallowedRegion(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cfg := compliantStack()
	cfg.Region = "ap-southeast-2"

	result, err := engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Allowed {
		t.Error("stack in unapproved region must not be allowed")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "region-allowlist" {
			found = true
			if v.Field != "region" {
				t.Errorf("Field = %q, want region", v.Field)
			}
			if !strings.Contains(v.Message, "ap-southeast-2") {
				t.Errorf("Message = %q, want region named", v.Message)
			}
		}
	}
	if !found {
		t.Errorf("no region-allowlist violation in %+v", result.Violations)
	}
}

func TestEvaluate_MissingRequiredTags(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cfg := compliantStack()
	cfg.Tags = map[string]string{"owner": "platform"}

	result, err := engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Allowed {
		t.Error("stack missing cost-center tag must not be allowed")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "required-tags" && strings.Contains(v.Message, "cost-center") {
			found = true
		}
	}
	if !found {
		t.Errorf("no required-tags violation for cost-center in %+v", result.Violations)
	}
}

func TestEvaluate_PlaceholderDomainInProduction(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cfg := compliantStack()
	cfg.DomainName = "example.com"

	result, err := engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Allowed {
		t.Error("placeholder domain in prod must not be allowed")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "production-safeguards" && v.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Errorf("no critical production-safeguards violation in %+v", result.Violations)
	}
}

func TestEvaluate_PlaceholderDomainAllowedInDev(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cfg := compliantStack()
	cfg.Environment = "dev"
	cfg.DomainName = "example.com"

	result, err := engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !result.Allowed {
		t.Errorf("placeholder domain outside prod must be allowed, violations: %+v", result.Violations)
	}
}

func TestEvaluate_WarningsDoNotBlock(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cfg := compliantStack()
	cfg.BucketPrefix = strings.Repeat("a", 60)

	result, err := engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !result.Allowed {
		t.Errorf("warning-only violations must not block, got: %+v", result.Violations)
	}
	if len(result.Violations) == 0 {
		t.Fatal("expected a bucket-conventions warning")
	}
	if result.Violations[0].Severity != SeverityWarning {
		t.Errorf("Severity = %s, want warning", result.Violations[0].Severity)
	}
}

func TestDisablePolicy_SkipsEvaluation(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := engine.DisablePolicy("region-allowlist"); err != nil {
		t.Fatalf("DisablePolicy: %v", err)
	}

	cfg := compliantStack()
	cfg.Region = "ap-southeast-2"

	result, err := engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	for _, v := range result.Violations {
		if v.Policy == "region-allowlist" {
			t.Error("disabled policy must not produce violations")
		}
	}

	if err := engine.EnablePolicy("region-allowlist"); err != nil {
		t.Fatalf("EnablePolicy: %v", err)
	}

	result, err = engine.Evaluate(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Allowed {
		t.Error("re-enabled policy must block again")
	}
}

func TestEnablePolicy_UnknownName(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := engine.EnablePolicy("no-such-policy"); err == nil {
		t.Error("expected error for unknown policy")
	}
	if err := engine.DisablePolicy("no-such-policy"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestReloadPolicies_RestoresBuiltins(t *testing.T) {
	engine, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := engine.DisablePolicy("stack-naming"); err != nil {
		t.Fatalf("DisablePolicy: %v", err)
	}

	if err := engine.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("ReloadPolicies: %v", err)
	}

	p, err := engine.GetPolicy("stack-naming")
	if err != nil {
		t.Fatalf("GetPolicy after reload: %v", err)
	}
	if !p.Enabled {
		t.Error("reload must restore built-in policy state")
	}
}
