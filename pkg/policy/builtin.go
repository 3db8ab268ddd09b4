package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		regionAllowlistPolicy(),
		stackNamingPolicy(),
		requiredTagsPolicy(),
		productionSafeguardsPolicy(),
		bucketConventionsPolicy(),
	}
}

// regionAllowlistPolicy restricts stacks to approved regions.
func regionAllowlistPolicy() Policy {
	return Policy{
		Name:        "region-allowlist",
		Description: "Restricts stacks to regions approved for hosting",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"regions", "compliance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package sitestack.policies.regions

import rego.v1

allowed_regions := ["us-east-1", "us-west-2", "eu-west-1", "eu-central-1"]

deny contains violation if {
	input.stack
	region := input.stack.region

	not region in allowed_regions
	violation := {
		"message": sprintf("Region '%s' is not in the approved list", [region]),
		"severity": "error",
		"field": "region",
		"stack": input.stack.name,
	}
}`,
	}
}

// stackNamingPolicy enforces stack naming conventions.
func stackNamingPolicy() Policy {
	return Policy{
		Name:        "stack-naming",
		Description: "Enforces stack naming conventions (lowercase, alphanumeric, hyphens only)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package sitestack.policies.naming

import rego.v1

deny contains violation if {
	input.stack
	not input.stack.name
	violation := {
		"message": "Stack must have a name",
		"severity": "error",
		"field": "name",
	}
}

deny contains violation if {
	input.stack
	name := input.stack.name

	not regex.match("^[a-z0-9-]+$", name)
	violation := {
		"message": sprintf("Stack name '%s' must contain only lowercase letters, numbers, and hyphens", [name]),
		"severity": "error",
		"field": "name",
		"stack": name,
	}
}

deny contains violation if {
	input.stack
	name := input.stack.name

	regex.match("^-|-$", name)
	violation := {
		"message": sprintf("Stack name '%s' must not start or end with a hyphen", [name]),
		"severity": "error",
		"field": "name",
		"stack": name,
	}
}

deny contains violation if {
	input.stack
	name := input.stack.name

	count(name) < 3
	violation := {
		"message": sprintf("Stack name '%s' must be at least 3 characters long", [name]),
		"severity": "error",
		"field": "name",
		"stack": name,
	}
}

deny contains violation if {
	input.stack
	name := input.stack.name

	count(name) > 63
	violation := {
		"message": sprintf("Stack name '%s' must not exceed 63 characters", [name]),
		"severity": "error",
		"field": "name",
		"stack": name,
	}
}`,
	}
}

// requiredTagsPolicy ensures cost-accounting tags are present.
func requiredTagsPolicy() Policy {
	return Policy{
		Name:        "required-tags",
		Description: "Ensures critical tags (owner, cost-center) are present on all stacks",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"tags", "metadata"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package sitestack.policies.tags

import rego.v1

required_tags := ["owner", "cost-center"]

deny contains violation if {
	input.stack
	not input.stack.tags
	violation := {
		"message": sprintf("Stack %s must have tags", [input.stack.name]),
		"severity": "error",
		"field": "tags",
		"stack": input.stack.name,
	}
}

deny contains violation if {
	input.stack
	some tag in required_tags

	not input.stack.tags[tag]
	violation := {
		"message": sprintf("Stack %s missing required tag: %s", [input.stack.name, tag]),
		"severity": "error",
		"field": "tags",
		"stack": input.stack.name,
	}
}

deny contains violation if {
	input.stack
	some tag in required_tags

	input.stack.tags[tag] == ""
	violation := {
		"message": sprintf("Stack %s has empty required tag: %s", [input.stack.name, tag]),
		"severity": "error",
		"field": "tags",
		"stack": input.stack.name,
	}
}`,
	}
}

// productionSafeguardsPolicy blocks throwaway domains and regions in prod.
func productionSafeguardsPolicy() Policy {
	return Policy{
		Name:        "production-safeguards",
		Description: "Prevents placeholder domains and unapproved prod regions",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"production", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package sitestack.policies.production

import rego.v1

placeholder_domains := ["example.com", "example.org", "example.net", "test.com"]

deny contains violation if {
	input.stack
	input.stack.environment == "prod"
	some domain in placeholder_domains

	input.stack.domain_name == domain
	violation := {
		"message": sprintf("Production stack %s uses placeholder domain %s", [input.stack.name, domain]),
		"severity": "critical",
		"field": "domain_name",
		"stack": input.stack.name,
	}
}

deny contains violation if {
	input.stack
	input.stack.environment == "prod"

	endswith(input.stack.domain_name, ".local")
	violation := {
		"message": sprintf("Production stack %s uses a .local domain", [input.stack.name]),
		"severity": "critical",
		"field": "domain_name",
		"stack": input.stack.name,
	}
}`,
	}
}

// bucketConventionsPolicy keeps bucket prefixes inside S3 naming limits.
func bucketConventionsPolicy() Policy {
	return Policy{
		Name:        "bucket-conventions",
		Description: "Keeps bucket prefixes short enough for S3 naming limits",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"storage", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package sitestack.policies.buckets

import rego.v1

# S3 allows 63 characters; the engine appends "-client-files".
max_prefix_length := 50

deny contains violation if {
	input.stack
	prefix := input.stack.bucket_prefix
	prefix != ""

	count(prefix) > max_prefix_length
	violation := {
		"message": sprintf("Bucket prefix '%s' exceeds %d characters", [prefix, max_prefix_length]),
		"severity": "warning",
		"field": "bucket_prefix",
		"stack": input.stack.name,
	}
}

deny contains violation if {
	input.stack
	prefix := input.stack.bucket_prefix
	prefix != ""

	not regex.match("^[a-z0-9][a-z0-9-]*$", prefix)
	violation := {
		"message": sprintf("Bucket prefix '%s' must start with a letter or digit and contain only lowercase letters, digits, and hyphens", [prefix]),
		"severity": "warning",
		"field": "bucket_prefix",
		"stack": input.stack.name,
	}
}`,
	}
}
