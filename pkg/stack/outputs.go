package stack

// binding is a fixed projection from an output name to one topology field.
// A binding is a direct field read, never a computed transformation, and
// changes only with a specification update.
type binding struct {
	output string
	field  string
	read   func(*ResourceTopology) (any, bool)
}

func stringField(get func(*ResourceTopology) string) func(*ResourceTopology) (any, bool) {
	return func(t *ResourceTopology) (any, bool) {
		v := get(t)
		return v, v != ""
	}
}

// bindings is the declared output set, in published order.
var bindings = []binding{
	{
		output: OutputClientFilesBucketName,
		field:  FieldClientFilesBucket,
		read:   stringField(func(t *ResourceTopology) string { return t.ClientFilesBucket }),
	},
	{
		output: OutputCloudFrontDistributionID,
		field:  FieldDistributionID,
		read:   stringField(func(t *ResourceTopology) string { return t.DistributionID }),
	},
	{
		output: OutputCloudFrontDistributionDomainName,
		field:  FieldDistributionDomainName,
		read:   stringField(func(t *ResourceTopology) string { return t.DistributionDomainName }),
	},
	{
		output: OutputAPIGatewayEndpoint,
		field:  FieldAPIEndpoint,
		read:   stringField(func(t *ResourceTopology) string { return t.APIEndpoint }),
	},
	{
		output: OutputRoute53ZoneNameservers,
		field:  FieldZoneNameservers,
		read: func(t *ResourceTopology) (any, bool) {
			if len(t.ZoneNameservers) == 0 {
				return nil, false
			}
			ns := make([]string, len(t.ZoneNameservers))
			copy(ns, t.ZoneNameservers)
			return ns, true
		},
	},
}

// DeriveOutputs projects the declared outputs from a resolved topology.
// Given a fully populated topology it returns exactly one entry per
// declared binding. If any bound field is absent or empty it returns a
// MissingFieldError for the first such binding; values are never silently
// defaulted, since an empty output would hide a provisioning failure.
//
// DeriveOutputs is pure and safe for concurrent use.
func DeriveOutputs(t *ResourceTopology) (Outputs, error) {
	out := make(Outputs, len(bindings))
	for _, b := range bindings {
		v, ok := b.read(t)
		if !ok {
			return nil, &MissingFieldError{Output: b.output, Field: b.field}
		}
		out[b.output] = v
	}
	return out, nil
}
