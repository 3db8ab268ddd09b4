package stack

import (
	"errors"
	"reflect"
	"testing"
)

func fullTopology() *ResourceTopology {
	return &ResourceTopology{
		ClientFilesBucket:      "example.com-client-files",
		DistributionID:         "E2ABCDEF123456",
		DistributionDomainName: "d1234abcd.cloudfront.net",
		APIEndpoint:            "https://abc123.execute-api.us-east-1.amazonaws.com",
		ZoneNameservers: []string{
			"ns-1.awsdns-01.org",
			"ns-2.awsdns-02.com",
			"ns-3.awsdns-03.net",
			"ns-4.awsdns-04.co.uk",
		},
		HostedZoneID: "Z0123456789",
	}
}

func TestDeriveOutputs_FullTopology(t *testing.T) {
	topo := fullTopology()

	out, err := DeriveOutputs(topo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 5 {
		t.Fatalf("expected exactly 5 outputs, got %d: %v", len(out), out)
	}

	if got := out[OutputClientFilesBucketName]; got != topo.ClientFilesBucket {
		t.Errorf("bucket output = %v, want %v", got, topo.ClientFilesBucket)
	}
	if got := out[OutputCloudFrontDistributionID]; got != topo.DistributionID {
		t.Errorf("distribution id output = %v, want %v", got, topo.DistributionID)
	}
	if got := out[OutputCloudFrontDistributionDomainName]; got != topo.DistributionDomainName {
		t.Errorf("distribution domain output = %v, want %v", got, topo.DistributionDomainName)
	}
	if got := out[OutputAPIGatewayEndpoint]; got != topo.APIEndpoint {
		t.Errorf("api endpoint output = %v, want %v", got, topo.APIEndpoint)
	}
	if got := out[OutputRoute53ZoneNameservers]; !reflect.DeepEqual(got, topo.ZoneNameservers) {
		t.Errorf("nameserver output = %v, want %v", got, topo.ZoneNameservers)
	}
}

func TestDeriveOutputs_NameserverOrderPreserved(t *testing.T) {
	topo := fullTopology()

	out, err := DeriveOutputs(topo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ns, ok := out[OutputRoute53ZoneNameservers].([]string)
	if !ok {
		t.Fatalf("nameserver output has type %T, want []string", out[OutputRoute53ZoneNameservers])
	}
	if !reflect.DeepEqual(ns, topo.ZoneNameservers) {
		t.Errorf("nameserver order changed: %v", ns)
	}

	// The derived slice is a copy; mutating it must not touch the topology.
	ns[0] = "mutated"
	if topo.ZoneNameservers[0] == "mutated" {
		t.Error("derived nameserver slice aliases the topology")
	}
}

func TestDeriveOutputs_MissingNameservers(t *testing.T) {
	topo := fullTopology()
	topo.ZoneNameservers = nil

	_, err := DeriveOutputs(topo)
	if err == nil {
		t.Fatal("expected MissingFieldError, got nil")
	}

	var mfe *MissingFieldError
	if !errors.As(err, &mfe) {
		t.Fatalf("expected MissingFieldError, got %T: %v", err, err)
	}
	if mfe.Output != OutputRoute53ZoneNameservers {
		t.Errorf("error names output %q, want %q", mfe.Output, OutputRoute53ZoneNameservers)
	}
	if mfe.Field != FieldZoneNameservers {
		t.Errorf("error names field %q, want %q", mfe.Field, FieldZoneNameservers)
	}
}

func TestDeriveOutputs_EachFieldRequired(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*ResourceTopology)
		wantOutput string
	}{
		{"bucket", func(t *ResourceTopology) { t.ClientFilesBucket = "" }, OutputClientFilesBucketName},
		{"distribution id", func(t *ResourceTopology) { t.DistributionID = "" }, OutputCloudFrontDistributionID},
		{"distribution domain", func(t *ResourceTopology) { t.DistributionDomainName = "" }, OutputCloudFrontDistributionDomainName},
		{"api endpoint", func(t *ResourceTopology) { t.APIEndpoint = "" }, OutputAPIGatewayEndpoint},
		{"nameservers", func(t *ResourceTopology) { t.ZoneNameservers = []string{} }, OutputRoute53ZoneNameservers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := fullTopology()
			tt.mutate(topo)

			_, err := DeriveOutputs(topo)
			var mfe *MissingFieldError
			if !errors.As(err, &mfe) {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if mfe.Output != tt.wantOutput {
				t.Errorf("error names output %q, want %q", mfe.Output, tt.wantOutput)
			}
		})
	}
}

func TestOutputNames_MatchBindings(t *testing.T) {
	out, err := DeriveOutputs(fullTopology())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range OutputNames() {
		if _, ok := out[name]; !ok {
			t.Errorf("declared output %q missing from derivation", name)
		}
	}
}
