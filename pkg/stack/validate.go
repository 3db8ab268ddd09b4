package stack

import "regexp"

// Validation patterns for the regex-gated inputs. Anchored so partial
// matches never pass.
var (
	// regionPattern matches cloud region codes: two lowercase letters,
	// a geographic label, and a single digit (us-east-1, eu-west-2).
	regionPattern = regexp.MustCompile(`^[a-z]{2}-[a-z]+-[0-9]$`)

	// domainPattern matches an apex DNS domain: a label starting with an
	// alphanumeric, then a top-level label of at least two letters.
	domainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.[a-z]{2,}$`)

	// labelPattern matches a single lowercase DNS label that may not start
	// with a hyphen.
	labelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// rule binds a named configuration value to its predicate and failure
// message. Rules are deterministic and side-effect free.
type rule struct {
	field   string
	pattern *regexp.Regexp
	message string
	value   func(*StackConfig) string
}

// rules is the declared rule set, evaluated in order on every pass.
var rules = []rule{
	{
		field:   "region",
		pattern: regionPattern,
		message: "must be a region code like us-east-1",
		value:   func(c *StackConfig) string { return c.Region },
	},
	{
		field:   "domain_name",
		pattern: domainPattern,
		message: "must be a lowercase domain like example.com",
		value:   func(c *StackConfig) string { return c.DomainName },
	},
	{
		field:   "api_domain_prefix",
		pattern: labelPattern,
		message: "must be a lowercase DNS label like api or api-v2",
		value:   func(c *StackConfig) string { return c.APIDomainPrefix },
	},
}

// Validate evaluates every declared rule against cfg and returns one
// ValidationError per failing field. It does not short-circuit, so a
// config with three bad values yields three errors in a single pass.
// A nil return means the configuration may proceed to deployment.
//
// Validate is a pure function: same input, same result, no side effects.
func Validate(cfg *StackConfig) ValidationErrors {
	var errs ValidationErrors
	for _, r := range rules {
		v := r.value(cfg)
		if !r.pattern.MatchString(v) {
			errs = append(errs, &ValidationError{
				Field:   r.field,
				Value:   v,
				Message: r.message,
			})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
