package topology

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleState = `{
  "version": 4,
  "serial": 12,
  "lineage": "1b7e7f55-5a61-4c2a-9c1f-0e7d7b7e7f55",
  "resources": [
    {
      "mode": "managed",
      "type": "aws_s3_bucket",
      "name": "client_files",
      "provider": "provider[\"registry.terraform.io/hashicorp/aws\"]",
      "instances": [
        {"schema_version": 0, "attributes": {"bucket": "example-com-client-files", "arn": "arn:aws:s3:::example-com-client-files"}}
      ]
    },
    {
      "mode": "managed",
      "type": "aws_cloudfront_distribution",
      "name": "site",
      "instances": [
        {"schema_version": 1, "attributes": {"id": "E2ABCDEFGHIJKL", "domain_name": "d111111abcdef8.cloudfront.net"}}
      ]
    },
    {
      "mode": "managed",
      "type": "aws_route53_zone",
      "name": "primary",
      "instances": [
        {"schema_version": 0, "attributes": {
          "name": "example.com.",
          "zone_id": "Z0123456789ABC",
          "name_servers": ["ns-1.awsdns-01.org", "ns-2.awsdns-02.net"]
        }}
      ]
    },
    {
      "mode": "managed",
      "type": "aws_route53_zone",
      "name": "secondary",
      "instances": [
        {"schema_version": 0, "attributes": {
          "name": "other.example.org.",
          "zone_id": "Z9876543210XYZ",
          "name_servers": ["ns-9.awsdns-09.com"]
        }}
      ]
    },
    {
      "mode": "managed",
      "type": "aws_apigatewayv2_api",
      "name": "api",
      "instances": [
        {"schema_version": 0, "attributes": {"api_endpoint": "https://abc123.execute-api.eu-west-1.amazonaws.com", "id": "abc123"}}
      ]
    },
    {
      "mode": "managed",
      "type": "aws_acm_certificate",
      "name": "cert",
      "instances": [
        {"schema_version": 0, "attributes": {"arn": "arn:aws:acm:us-east-1:123456789012:certificate/aaaa"}}
      ]
    },
    {
      "mode": "data",
      "type": "aws_s3_bucket",
      "name": "external",
      "instances": [
        {"schema_version": 0, "attributes": {"bucket": "should-be-ignored"}}
      ]
    }
  ]
}`

func writeSampleState(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stack.tfstate")
	if err := os.WriteFile(path, []byte(sampleState), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	return path
}

func TestLoadStateFile(t *testing.T) {
	doc, err := LoadStateFile(writeSampleState(t))
	if err != nil {
		t.Fatalf("LoadStateFile: %v", err)
	}

	if doc.Version != 4 {
		t.Errorf("Version = %d, want 4", doc.Version)
	}
	if doc.Serial != 12 {
		t.Errorf("Serial = %d, want 12", doc.Serial)
	}
	if len(doc.Resources) != 7 {
		t.Errorf("len(Resources) = %d, want 7", len(doc.Resources))
	}
}

func TestLoadStateFile_Missing(t *testing.T) {
	if _, err := LoadStateFile(filepath.Join(t.TempDir(), "nope.tfstate")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadStateFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tfstate")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	if _, err := LoadStateFile(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestResolveFromState(t *testing.T) {
	doc, err := LoadStateFile(writeSampleState(t))
	if err != nil {
		t.Fatalf("LoadStateFile: %v", err)
	}

	topo := ResolveFromState(doc, "example.com")

	if topo.ClientFilesBucket != "example-com-client-files" {
		t.Errorf("ClientFilesBucket = %q", topo.ClientFilesBucket)
	}
	if topo.DistributionID != "E2ABCDEFGHIJKL" {
		t.Errorf("DistributionID = %q", topo.DistributionID)
	}
	if topo.DistributionDomainName != "d111111abcdef8.cloudfront.net" {
		t.Errorf("DistributionDomainName = %q", topo.DistributionDomainName)
	}
	if topo.APIEndpoint != "https://abc123.execute-api.eu-west-1.amazonaws.com" {
		t.Errorf("APIEndpoint = %q", topo.APIEndpoint)
	}
	if topo.HostedZoneID != "Z0123456789ABC" {
		t.Errorf("HostedZoneID = %q, want zone for example.com", topo.HostedZoneID)
	}
	want := []string{"ns-1.awsdns-01.org", "ns-2.awsdns-02.net"}
	if !reflect.DeepEqual(topo.ZoneNameservers, want) {
		t.Errorf("ZoneNameservers = %v, want %v", topo.ZoneNameservers, want)
	}
	if topo.CertificateARN == "" {
		t.Error("CertificateARN not resolved")
	}
}

func TestResolveFromState_ZoneKeyedByDomain(t *testing.T) {
	doc, err := LoadStateFile(writeSampleState(t))
	if err != nil {
		t.Fatalf("LoadStateFile: %v", err)
	}

	topo := ResolveFromState(doc, "other.example.org")

	if topo.HostedZoneID != "Z9876543210XYZ" {
		t.Errorf("HostedZoneID = %q, want the other.example.org zone", topo.HostedZoneID)
	}
	if len(topo.ZoneNameservers) != 1 || topo.ZoneNameservers[0] != "ns-9.awsdns-09.com" {
		t.Errorf("ZoneNameservers = %v", topo.ZoneNameservers)
	}
}

func TestResolveFromState_IgnoresDataResources(t *testing.T) {
	doc := &StateDocument{
		Resources: []StateResource{
			{
				Mode: "data",
				Type: resourceTypeBucket,
				Instances: []StateInstance{
					{Attributes: map[string]any{"bucket": "data-source-bucket"}},
				},
			},
		},
	}

	topo := ResolveFromState(doc, "example.com")
	if topo.ClientFilesBucket != "" {
		t.Errorf("ClientFilesBucket = %q, data resources must be skipped", topo.ClientFilesBucket)
	}
}

func TestResolveFromState_EmptyState(t *testing.T) {
	topo := ResolveFromState(&StateDocument{Version: 4}, "example.com")

	if topo.ClientFilesBucket != "" || topo.DistributionID != "" ||
		topo.APIEndpoint != "" || len(topo.ZoneNameservers) != 0 {
		t.Errorf("empty state must yield empty topology, got %+v", topo)
	}
}
