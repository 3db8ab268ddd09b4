// Package topology resolves the stack.ResourceTopology that output
// derivation consumes.
//
// Two resolvers are provided. The state-file resolver projects a
// provisioning-state JSON document (the engine's record of instantiated
// resources) into a topology without touching the network. The AWS
// resolver queries the live account through the AWS SDK service clients
// (S3, CloudFront, Route53, API Gateway), each wrapped in a narrow
// interface so tests can substitute fakes.
//
// Resolvers populate whatever fields they can find and leave the rest
// empty; deciding whether a topology is complete is the output deriver's
// job, not the resolver's.
package topology
