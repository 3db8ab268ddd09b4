package topology

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/sitestack/sitestack/pkg/stack"
)

// StackTagKey is the resource tag the provisioning engine stamps on every
// resource it creates; the live resolver uses it to pick the right API
// when an account holds several.
const StackTagKey = "sitestack:stack"

// S3API is the subset of the S3 client the resolver uses.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// CloudFrontAPI is the subset of the CloudFront client the resolver uses.
type CloudFrontAPI interface {
	ListDistributions(ctx context.Context, params *cloudfront.ListDistributionsInput, optFns ...func(*cloudfront.Options)) (*cloudfront.ListDistributionsOutput, error)
}

// Route53API is the subset of the Route53 client the resolver uses.
type Route53API interface {
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
	GetHostedZone(ctx context.Context, params *route53.GetHostedZoneInput, optFns ...func(*route53.Options)) (*route53.GetHostedZoneOutput, error)
}

// APIGatewayAPI is the subset of the API Gateway v2 client the resolver uses.
type APIGatewayAPI interface {
	GetApis(ctx context.Context, params *apigatewayv2.GetApisInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetApisOutput, error)
}

// AWSResolver resolves a resource topology from the live AWS account.
type AWSResolver struct {
	s3Client         S3API
	cloudfrontClient CloudFrontAPI
	route53Client    Route53API
	apigwClient      APIGatewayAPI
	logger           zerolog.Logger
}

// NewAWSResolver creates a resolver backed by real AWS clients for the
// given region, using the default credential chain.
func NewAWSResolver(ctx context.Context, region string, logger zerolog.Logger) (*AWSResolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSResolver{
		s3Client:         s3.NewFromConfig(cfg),
		cloudfrontClient: cloudfront.NewFromConfig(cfg),
		route53Client:    route53.NewFromConfig(cfg),
		apigwClient:      apigatewayv2.NewFromConfig(cfg),
		logger:           logger.With().Str("component", "aws-resolver").Logger(),
	}, nil
}

// NewAWSResolverWithClients creates a resolver with explicit clients.
// Tests use this to substitute fakes.
func NewAWSResolverWithClients(s3c S3API, cfc CloudFrontAPI, r53 Route53API, apigw APIGatewayAPI, logger zerolog.Logger) *AWSResolver {
	return &AWSResolver{
		s3Client:         s3c,
		cloudfrontClient: cfc,
		route53Client:    r53,
		apigwClient:      apigw,
		logger:           logger,
	}
}

// BucketName returns the expected content bucket name for a stack.
func BucketName(cfg *stack.StackConfig) string {
	if cfg.BucketPrefix != "" {
		return cfg.BucketPrefix + "-client-files"
	}
	return cfg.DomainName + "-client-files"
}

// Resolve queries the live account for the stack's resources and returns
// whatever topology it can assemble. Lookups that find nothing leave
// their fields empty; API errors abort, since a partial answer caused by
// a failed call is indistinguishable from missing resources.
func (r *AWSResolver) Resolve(ctx context.Context, cfg *stack.StackConfig) (*stack.ResourceTopology, error) {
	topo := &stack.ResourceTopology{}

	if err := r.resolveBucket(ctx, cfg, topo); err != nil {
		return nil, err
	}
	if err := r.resolveDistribution(ctx, cfg, topo); err != nil {
		return nil, err
	}
	if err := r.resolveZone(ctx, cfg, topo); err != nil {
		return nil, err
	}
	if err := r.resolveAPI(ctx, cfg, topo); err != nil {
		return nil, err
	}

	return topo, nil
}

func (r *AWSResolver) resolveBucket(ctx context.Context, cfg *stack.StackConfig, topo *stack.ResourceTopology) error {
	name := BucketName(cfg)

	_, err := r.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		// A missing bucket is reported by the deriver, not here.
		r.logger.Warn().Err(err).Str("bucket", name).Msg("content bucket not found")
		return nil
	}

	topo.ClientFilesBucket = name
	return nil
}

func (r *AWSResolver) resolveDistribution(ctx context.Context, cfg *stack.StackConfig, topo *stack.ResourceTopology) error {
	out, err := r.cloudfrontClient.ListDistributions(ctx, &cloudfront.ListDistributionsInput{})
	if err != nil {
		return fmt.Errorf("failed to list distributions: %w", err)
	}

	if out.DistributionList == nil {
		return nil
	}

	for _, dist := range out.DistributionList.Items {
		if dist.Aliases == nil {
			continue
		}
		for _, alias := range dist.Aliases.Items {
			if alias == cfg.DomainName || alias == "www."+cfg.DomainName {
				topo.DistributionID = aws.ToString(dist.Id)
				topo.DistributionDomainName = aws.ToString(dist.DomainName)
				return nil
			}
		}
	}

	r.logger.Warn().Str("domain", cfg.DomainName).Msg("no distribution aliases the domain")
	return nil
}

func (r *AWSResolver) resolveZone(ctx context.Context, cfg *stack.StackConfig, topo *stack.ResourceTopology) error {
	out, err := r.route53Client.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName: aws.String(cfg.DomainName),
	})
	if err != nil {
		return fmt.Errorf("failed to list hosted zones: %w", err)
	}

	for _, zone := range out.HostedZones {
		if normalizeZoneName(aws.ToString(zone.Name)) != cfg.DomainName {
			continue
		}

		zoneID := strings.TrimPrefix(aws.ToString(zone.Id), "/hostedzone/")
		detail, err := r.route53Client.GetHostedZone(ctx, &route53.GetHostedZoneInput{
			Id: aws.String(zoneID),
		})
		if err != nil {
			return fmt.Errorf("failed to get hosted zone %s: %w", zoneID, err)
		}

		topo.HostedZoneID = zoneID
		if detail.DelegationSet != nil {
			topo.ZoneNameservers = detail.DelegationSet.NameServers
		}
		return nil
	}

	r.logger.Warn().Str("domain", cfg.DomainName).Msg("no hosted zone for domain")
	return nil
}

func (r *AWSResolver) resolveAPI(ctx context.Context, cfg *stack.StackConfig, topo *stack.ResourceTopology) error {
	out, err := r.apigwClient.GetApis(ctx, &apigatewayv2.GetApisInput{})
	if err != nil {
		return fmt.Errorf("failed to list APIs: %w", err)
	}

	// Prefer the stack tag; fall back to name matching for stacks
	// provisioned before tagging was introduced.
	for _, api := range out.Items {
		if api.Tags[StackTagKey] == cfg.Name {
			topo.APIEndpoint = aws.ToString(api.ApiEndpoint)
			return nil
		}
	}
	for _, api := range out.Items {
		if aws.ToString(api.Name) == cfg.Name {
			topo.APIEndpoint = aws.ToString(api.ApiEndpoint)
			return nil
		}
	}

	r.logger.Warn().Str("stack", cfg.Name).Msg("no API gateway for stack")
	return nil
}
