// Package policy evaluates Rego policies against stack configurations
// and derived outputs using the Open Policy Agent.
//
// Policies express organisational rules that sit above schema
// validation: which regions a stack may deploy to, which tags every
// stack must carry, what names are acceptable. Each policy is a Rego
// module with a `deny` set; every element of the set becomes a
// violation. Violations at error or critical severity block the run,
// warnings are reported and let it continue.
//
// Built-in policies ship with the engine and can be supplemented with
// .rego or .json files loaded from disk, with optional hot reload.
package policy
