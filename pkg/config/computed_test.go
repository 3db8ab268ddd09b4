package config

import (
	"context"
	"testing"
	"time"
)

func TestStarlarkEvaluator_Basic(t *testing.T) {
	se := NewStarlarkEvaluator(5 * time.Second)

	result, err := se.Evaluate(context.Background(), `
bucket = domain + "-client-files"
labels = [prefix, "www"]
`, map[string]interface{}{
		"domain": "example.com",
		"prefix": "api",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Output["bucket"] != "example.com-client-files" {
		t.Errorf("bucket = %v, want example.com-client-files", result.Output["bucket"])
	}

	labels, ok := result.Output["labels"].([]interface{})
	if !ok || len(labels) != 2 {
		t.Errorf("labels = %v, want two entries", result.Output["labels"])
	}
}

func TestStarlarkEvaluator_UnderscoreGlobalsSkipped(t *testing.T) {
	se := NewStarlarkEvaluator(5 * time.Second)

	result, err := se.Evaluate(context.Background(), `
_scratch = "hidden"
visible = "shown"
`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := result.Output["_scratch"]; ok {
		t.Error("underscore-prefixed globals should be skipped")
	}
	if result.Output["visible"] != "shown" {
		t.Errorf("visible = %v, want shown", result.Output["visible"])
	}
}

func TestStarlarkEvaluator_SyntaxError(t *testing.T) {
	se := NewStarlarkEvaluator(5 * time.Second)

	if _, err := se.Evaluate(context.Background(), `bucket = `, nil); err == nil {
		t.Fatal("expected error for invalid snippet")
	}
}

func TestStarlarkEvaluator_Timeout(t *testing.T) {
	se := NewStarlarkEvaluator(50 * time.Millisecond)

	_, err := se.Evaluate(context.Background(), `
def spin():
    x = 0
    for i in range(100000000):
        x += i
    return x

y = spin()
`, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
