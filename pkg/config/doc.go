// Package config parses declarative stack configuration written in CUE
// into the typed stack.StackConfig that the validator and output deriver
// consume.
//
// The parsing pipeline is:
//
//  1. Load CUE sources (files, directories, or inline content) and unify
//     them into a single value.
//  2. Check the value against the built-in #Stack schema, which carries
//     the same regex constraints the validator enforces, so malformed
//     configs fail early with file/line positions.
//  3. Decode into stack.StackConfig and run struct-tag validation
//     (go-playground/validator) for required fields.
//  4. Optionally evaluate a `computed` Starlark snippet that derives
//     additional values (for example a bucket name from the domain).
//
// Errors from every step are collected as ValidationError values with
// source positions where available, so an operator sees everything wrong
// with a config in one run.
package config
