package topology

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sitestack/sitestack/pkg/stack"
)

// StateDocument is the provisioning engine's state record, as written
// after an apply. Only the pieces this package projects are modelled;
// everything else is carried opaquely.
type StateDocument struct {
	Version   int                    `json:"version"`
	Serial    int                    `json:"serial"`
	Lineage   string                 `json:"lineage,omitempty"`
	Outputs   map[string]StateOutput `json:"outputs,omitempty"`
	Resources []StateResource        `json:"resources"`
}

// StateOutput is a recorded output value.
type StateOutput struct {
	Value     any  `json:"value"`
	Type      any  `json:"type"`
	Sensitive bool `json:"sensitive,omitempty"`
}

// StateResource is one managed resource in the state document.
type StateResource struct {
	Mode      string          `json:"mode"`
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	Provider  string          `json:"provider,omitempty"`
	Instances []StateInstance `json:"instances"`
}

// StateInstance is one instance of a managed resource.
type StateInstance struct {
	SchemaVersion int            `json:"schema_version"`
	Attributes    map[string]any `json:"attributes"`
}

// Resource type names the state-file resolver recognises.
const (
	resourceTypeBucket       = "aws_s3_bucket"
	resourceTypeDistribution = "aws_cloudfront_distribution"
	resourceTypeZone         = "aws_route53_zone"
	resourceTypeAPI          = "aws_apigatewayv2_api"
	resourceTypeCertificate  = "aws_acm_certificate"
)

// LoadStateFile reads and parses a state document from path.
func LoadStateFile(path string) (*StateDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var doc StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}

	return &doc, nil
}

// ResolveFromState projects a state document into a resource topology.
// domainName selects which hosted zone's nameservers are used when the
// state holds more than one zone; zones whose name does not match are
// skipped. Fields with no matching resource are left empty for the
// deriver to report.
func ResolveFromState(doc *StateDocument, domainName string) *stack.ResourceTopology {
	topo := &stack.ResourceTopology{}

	for _, res := range doc.Resources {
		if res.Mode != "" && res.Mode != "managed" {
			continue
		}
		if len(res.Instances) == 0 {
			continue
		}
		attrs := res.Instances[0].Attributes

		switch res.Type {
		case resourceTypeBucket:
			if topo.ClientFilesBucket == "" {
				topo.ClientFilesBucket = stringAttr(attrs, "bucket")
			}
		case resourceTypeDistribution:
			topo.DistributionID = stringAttr(attrs, "id")
			topo.DistributionDomainName = stringAttr(attrs, "domain_name")
		case resourceTypeZone:
			// Keyed by domain so multiple zones never collide.
			if normalizeZoneName(stringAttr(attrs, "name")) != domainName {
				continue
			}
			topo.HostedZoneID = stringAttr(attrs, "zone_id")
			topo.ZoneNameservers = stringSliceAttr(attrs, "name_servers")
		case resourceTypeAPI:
			topo.APIEndpoint = stringAttr(attrs, "api_endpoint")
		case resourceTypeCertificate:
			topo.CertificateARN = stringAttr(attrs, "arn")
		}
	}

	return topo
}

// normalizeZoneName strips the trailing dot DNS zone names carry.
func normalizeZoneName(name string) string {
	return strings.TrimSuffix(name, ".")
}

func stringAttr(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceAttr(attrs map[string]any, key string) []string {
	raw, ok := attrs[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
