package config

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("stack", builtinStackSchema)
	sr.RegisterSchema("topology", builtinTopologySchema)
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	def, ok := schemaDefinition(schema)
	if !ok {
		return fmt.Errorf("schema %s declares no definition", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	// Unify with the definition (validates)
	unified := def.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// schemaDefinition returns the schema's top-level definition. The compiled
// file value is a struct that merely declares the definition; the
// constraints live on the definition itself, so unification must target it
// or nothing is checked.
func schemaDefinition(schema cue.Value) (cue.Value, bool) {
	it, err := schema.Fields(cue.Definitions(true))
	if err != nil {
		return cue.Value{}, false
	}
	for it.Next() {
		if it.Selector().IsDefinition() {
			return it.Value(), true
		}
	}
	return cue.Value{}, false
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// Built-in schema definitions.
//
// The regex constraints here mirror the rules in pkg/stack/validate.go:
// the schema rejects malformed configs at parse time with positions, and
// the pure validator re-checks the decoded values so programmatic callers
// that skip CUE get the same gate.

const builtinStackSchema = `
// Stack schema for SiteStack deployment configuration
#Stack: {
	// Name is the stack name used to key stored runs and snapshots
	name: string & =~"^[a-zA-Z0-9_-]+$"

	// Environment is the deployment environment
	environment?: "dev" | "staging" | "prod"

	// Region is the cloud region code the stack deploys into
	region: string & =~"^[a-z]{2}-[a-z]+-[0-9]$"

	// DomainName is the apex DNS domain for the website
	domain_name: string & =~"^[a-z0-9][a-z0-9-]*\\.[a-z]{2,}$"

	// APIDomainPrefix is the DNS label for the API endpoint
	api_domain_prefix: string & =~"^[a-z0-9][a-z0-9-]*$"

	// BucketPrefix optionally overrides the content bucket name prefix
	bucket_prefix?: string & =~"^[a-z0-9][a-z0-9.-]*$"

	// Tags are propagated to every resource
	tags?: {[string]: string}
}
`

const builtinTopologySchema = `
// Topology schema for resolved resource topologies
#Topology: {
	// ClientFilesBucket is the website content bucket name
	client_files_bucket: string

	// DistributionID identifies the CDN distribution
	distribution_id: string

	// DistributionDomainName is the distribution's public domain
	distribution_domain_name: string

	// APIEndpoint is the API gateway invoke URL
	api_endpoint: string

	// ZoneNameservers is the ordered nameserver set for the domain's zone
	zone_nameservers: [...string]

	hosted_zone_id?:  string
	certificate_arn?: string
}
`

// ValidateStack validates a stack configuration against the stack schema.
func (sr *SchemaRegistry) ValidateStack(ctx context.Context, data interface{}) error {
	return sr.ValidateAgainstSchema(ctx, "stack", data)
}

// ValidateTopology validates a topology document against the topology schema.
func (sr *SchemaRegistry) ValidateTopology(ctx context.Context, data interface{}) error {
	return sr.ValidateAgainstSchema(ctx, "topology", data)
}
