package stack

// Topology field names, used by output bindings and in MissingFieldError
// messages. They mirror the state keys the provisioning engine records.
const (
	FieldClientFilesBucket      = "client_files_bucket"
	FieldDistributionID         = "distribution_id"
	FieldDistributionDomainName = "distribution_domain_name"
	FieldAPIEndpoint            = "api_endpoint"
	FieldZoneNameservers        = "zone_nameservers"
)

// ResourceTopology is the read-only view of an instantiated stack that
// output derivation consumes. This package never creates or mutates a
// topology; pkg/topology resolves one from a state file or live cloud
// APIs once the provisioning engine has finished.
type ResourceTopology struct {
	// ClientFilesBucket is the name of the S3 bucket holding the website
	// content.
	ClientFilesBucket string `json:"client_files_bucket"`

	// DistributionID identifies the CloudFront distribution fronting the
	// bucket. External tooling uses it for cache invalidation.
	DistributionID string `json:"distribution_id"`

	// DistributionDomainName is the distribution's public domain
	// (dxxxx.cloudfront.net), which forms the public website URL.
	DistributionDomainName string `json:"distribution_domain_name"`

	// APIEndpoint is the invoke URL of the API gateway.
	APIEndpoint string `json:"api_endpoint"`

	// ZoneNameservers is the ordered nameserver set of the Route53 zone
	// for the configured domain, keyed by that domain so multiple zones in
	// one account never collide. Used for registrar delegation.
	ZoneNameservers []string `json:"zone_nameservers"`

	// HostedZoneID and CertificateARN are carried for diagnostics and the
	// stored snapshots; no declared output binds them.
	HostedZoneID   string `json:"hosted_zone_id,omitempty"`
	CertificateARN string `json:"certificate_arn,omitempty"`
}
