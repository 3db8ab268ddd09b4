// Package stack contains the core configuration model for a SiteStack
// deployment: the typed input values an operator supplies, the validation
// rules that gate those inputs, and the fixed projections that turn a
// resolved resource topology into the published stack outputs.
//
// Everything in this package is pure. Validate and DeriveOutputs take all
// data as explicit arguments, hold no state, perform no I/O, and are safe
// for concurrent and repeated invocation. Parsing configuration files is
// pkg/config's job; resolving a topology is pkg/topology's job.
package stack
