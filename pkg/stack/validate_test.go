package stack

import (
	"reflect"
	"strings"
	"testing"
)

func validConfig() *StackConfig {
	return &StackConfig{
		Name:            "website",
		Region:          "us-east-1",
		DomainName:      "example.com",
		APIDomainPrefix: "api",
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if errs := Validate(validConfig()); errs != nil {
		t.Fatalf("expected no errors, got: %v", errs)
	}
}

func TestValidate_Region(t *testing.T) {
	tests := []struct {
		region  string
		wantErr bool
	}{
		{"us-east-1", false},
		{"eu-west-2", false},
		{"ap-southeast-2", false},
		{"us-gov-west-1", true}, // extra hyphenated segment
		{"USEast1", true},
		{"US-EAST-1", true},
		{"us-east", true},
		{"1-east-1", true},
		{"us-east-12", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			cfg := validConfig()
			cfg.Region = tt.region
			errs := Validate(cfg)

			if tt.wantErr {
				if len(errs) != 1 || errs[0].Field != "region" {
					t.Errorf("expected single region error, got: %v", errs)
				}
			} else if errs != nil {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestValidate_DomainName(t *testing.T) {
	tests := []struct {
		domain  string
		wantErr bool
	}{
		{"example.com", false},
		{"my-site.org", false},
		{"site42.io", false},
		{"-bad.com", true},
		{"example", true},
		{"example.c", true},
		{"Example.com", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			cfg := validConfig()
			cfg.DomainName = tt.domain
			errs := Validate(cfg)

			if tt.wantErr {
				if len(errs) != 1 || errs[0].Field != "domain_name" {
					t.Errorf("expected single domain_name error, got: %v", errs)
				}
			} else if errs != nil {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestValidate_APIDomainPrefix(t *testing.T) {
	tests := []struct {
		prefix  string
		wantErr bool
	}{
		{"api", false},
		{"api-v2", false},
		{"a", false},
		{"API", true},
		{"_api", true},
		{"api_v2", true},
		{"-api", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			cfg := validConfig()
			cfg.APIDomainPrefix = tt.prefix
			errs := Validate(cfg)

			if tt.wantErr {
				if len(errs) != 1 || errs[0].Field != "api_domain_prefix" {
					t.Errorf("expected single api_domain_prefix error, got: %v", errs)
				}
			} else if errs != nil {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &StackConfig{
		Name:            "website",
		Region:          "useast1",
		DomainName:      "bad",
		APIDomainPrefix: "API_1",
	}

	errs := Validate(cfg)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}

	want := []string{"region", "domain_name", "api_domain_prefix"}
	if got := errs.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected fields %v, got %v", want, got)
	}

	// Each error echoes the supplied value verbatim.
	if errs[0].Value != "useast1" || errs[1].Value != "bad" || errs[2].Value != "API_1" {
		t.Errorf("errors should carry supplied values, got: %v", errs)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	cfg := &StackConfig{
		Name:            "website",
		Region:          "nope",
		DomainName:      "example.com",
		APIDomainPrefix: "api",
	}

	first := Validate(cfg)
	second := Validate(cfg)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated validation differs: %v vs %v", first, second)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "region", Value: "nope", Message: "must be a region code like us-east-1"},
		{Field: "domain_name", Value: "", Message: "must be a lowercase domain like example.com"},
	}

	msg := errs.Error()
	if msg == "" {
		t.Fatal("expected non-empty message")
	}
	for _, want := range []string{"2 validation error(s)", "region", "domain_name"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
