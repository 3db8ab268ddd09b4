package stack

// StackConfig holds the operator-supplied inputs for one deployment of the
// static website + API stack. A config is declared once, validated before
// any resource definition depends on it, and never mutated afterwards.
type StackConfig struct {
	// Name is the stack name, used to key stored runs and snapshots.
	Name string `json:"name" validate:"required"`

	// Environment is the deployment environment (dev, staging, prod).
	Environment string `json:"environment,omitempty"`

	// Region is the cloud region code the stack deploys into.
	Region string `json:"region" validate:"required"`

	// DomainName is the apex DNS domain for the website.
	DomainName string `json:"domain_name" validate:"required"`

	// APIDomainPrefix is the DNS label prepended to DomainName for the API
	// endpoint (e.g. "api" yields api.example.com).
	APIDomainPrefix string `json:"api_domain_prefix" validate:"required"`

	// BucketPrefix optionally overrides the content bucket name prefix.
	// When empty the bucket is named after DomainName.
	BucketPrefix string `json:"bucket_prefix,omitempty"`

	// Tags are propagated to every resource the provisioning engine creates.
	Tags map[string]string `json:"tags,omitempty"`
}

// APIDomain returns the fully qualified API domain for the stack.
func (c *StackConfig) APIDomain() string {
	return c.APIDomainPrefix + "." + c.DomainName
}

// Output names published by a fully deployed stack. External tooling keys
// on these strings, so they change only with a coordinated release.
const (
	OutputClientFilesBucketName            = "client_files_bucket_name"
	OutputCloudFrontDistributionID         = "cloudfront_distribution_id"
	OutputCloudFrontDistributionDomainName = "cloudfront_distribution_domain_name"
	OutputAPIGatewayEndpoint               = "api_gateway_endpoint"
	OutputRoute53ZoneNameservers           = "route53_zone_nameservers"
)

// Outputs maps output names to their derived values. Values are either
// strings or, for the nameserver output, an ordered []string.
type Outputs map[string]any

// OutputNames lists the declared output names in their published order.
func OutputNames() []string {
	return []string{
		OutputClientFilesBucketName,
		OutputCloudFrontDistributionID,
		OutputCloudFrontDistributionDomainName,
		OutputAPIGatewayEndpoint,
		OutputRoute53ZoneNameservers,
	}
}
