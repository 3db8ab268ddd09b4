package topology

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitestack/sitestack/pkg/stack"
)

type fakeS3 struct {
	buckets map[string]bool
	err     error
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadBucketOutput{}, nil
}

type fakeCloudFront struct {
	out *cloudfront.ListDistributionsOutput
	err error
}

func (f *fakeCloudFront) ListDistributions(context.Context, *cloudfront.ListDistributionsInput, ...func(*cloudfront.Options)) (*cloudfront.ListDistributionsOutput, error) {
	return f.out, f.err
}

type fakeRoute53 struct {
	zones      []r53types.HostedZone
	delegation map[string][]string
	err        error
}

func (f *fakeRoute53) ListHostedZonesByName(context.Context, *route53.ListHostedZonesByNameInput, ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &route53.ListHostedZonesByNameOutput{HostedZones: f.zones}, nil
}

func (f *fakeRoute53) GetHostedZone(_ context.Context, in *route53.GetHostedZoneInput, _ ...func(*route53.Options)) (*route53.GetHostedZoneOutput, error) {
	ns, ok := f.delegation[aws.ToString(in.Id)]
	if !ok {
		return nil, errors.New("NoSuchHostedZone")
	}
	return &route53.GetHostedZoneOutput{
		HostedZone:    &r53types.HostedZone{Id: in.Id},
		DelegationSet: &r53types.DelegationSet{NameServers: ns},
	}, nil
}

type fakeAPIGateway struct {
	apis []apigwtypes.Api
	err  error
}

func (f *fakeAPIGateway) GetApis(context.Context, *apigatewayv2.GetApisInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.GetApisOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &apigatewayv2.GetApisOutput{Items: f.apis}, nil
}

func testStackConfig() *stack.StackConfig {
	return &stack.StackConfig{
		Name:            "acme-site",
		Environment:     "prod",
		Region:          "eu-west-1",
		DomainName:      "example.com",
		APIDomainPrefix: "api",
	}
}

func fullFakes() (*fakeS3, *fakeCloudFront, *fakeRoute53, *fakeAPIGateway) {
	s3c := &fakeS3{buckets: map[string]bool{"example.com-client-files": true}}
	cfc := &fakeCloudFront{out: &cloudfront.ListDistributionsOutput{
		DistributionList: &cftypes.DistributionList{
			Items: []cftypes.DistributionSummary{
				{
					Id:         aws.String("EUNRELATED000"),
					DomainName: aws.String("d000000000000.cloudfront.net"),
					Aliases:    &cftypes.Aliases{Items: []string{"elsewhere.net"}},
				},
				{
					Id:         aws.String("E2ABCDEFGHIJKL"),
					DomainName: aws.String("d111111abcdef8.cloudfront.net"),
					Aliases:    &cftypes.Aliases{Items: []string{"example.com", "www.example.com"}},
				},
			},
		},
	}}
	r53 := &fakeRoute53{
		zones: []r53types.HostedZone{
			{Id: aws.String("/hostedzone/Z0123456789ABC"), Name: aws.String("example.com.")},
		},
		delegation: map[string][]string{
			"Z0123456789ABC": {"ns-1.awsdns-01.org", "ns-2.awsdns-02.net"},
		},
	}
	apigw := &fakeAPIGateway{apis: []apigwtypes.Api{
		{
			ApiId:       aws.String("abc123"),
			Name:        aws.String("acme-site"),
			ApiEndpoint: aws.String("https://abc123.execute-api.eu-west-1.amazonaws.com"),
			Tags:        map[string]string{StackTagKey: "acme-site"},
		},
	}}
	return s3c, cfc, r53, apigw
}

func TestAWSResolver_Resolve(t *testing.T) {
	s3c, cfc, r53, apigw := fullFakes()
	resolver := NewAWSResolverWithClients(s3c, cfc, r53, apigw, zerolog.Nop())

	topo, err := resolver.Resolve(context.Background(), testStackConfig())
	require.NoError(t, err)

	assert.Equal(t, "example.com-client-files", topo.ClientFilesBucket)
	assert.Equal(t, "E2ABCDEFGHIJKL", topo.DistributionID)
	assert.Equal(t, "d111111abcdef8.cloudfront.net", topo.DistributionDomainName)
	assert.Equal(t, "https://abc123.execute-api.eu-west-1.amazonaws.com", topo.APIEndpoint)
	assert.Equal(t, "Z0123456789ABC", topo.HostedZoneID)
	assert.Equal(t, []string{"ns-1.awsdns-01.org", "ns-2.awsdns-02.net"}, topo.ZoneNameservers)
}

func TestAWSResolver_MissingBucketIsNotFatal(t *testing.T) {
	s3c, cfc, r53, apigw := fullFakes()
	s3c.buckets = nil
	resolver := NewAWSResolverWithClients(s3c, cfc, r53, apigw, zerolog.Nop())

	topo, err := resolver.Resolve(context.Background(), testStackConfig())
	require.NoError(t, err)
	assert.Empty(t, topo.ClientFilesBucket)
	assert.Equal(t, "E2ABCDEFGHIJKL", topo.DistributionID)
}

func TestAWSResolver_BucketPrefixOverridesDomain(t *testing.T) {
	s3c, cfc, r53, apigw := fullFakes()
	s3c.buckets = map[string]bool{"acme-client-files": true}
	resolver := NewAWSResolverWithClients(s3c, cfc, r53, apigw, zerolog.Nop())

	cfg := testStackConfig()
	cfg.BucketPrefix = "acme"
	topo, err := resolver.Resolve(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "acme-client-files", topo.ClientFilesBucket)
}

func TestAWSResolver_APIMatchedByNameWithoutTag(t *testing.T) {
	s3c, cfc, r53, apigw := fullFakes()
	apigw.apis = []apigwtypes.Api{
		{
			ApiId:       aws.String("zzz999"),
			Name:        aws.String("acme-site"),
			ApiEndpoint: aws.String("https://zzz999.execute-api.eu-west-1.amazonaws.com"),
		},
	}
	resolver := NewAWSResolverWithClients(s3c, cfc, r53, apigw, zerolog.Nop())

	topo, err := resolver.Resolve(context.Background(), testStackConfig())
	require.NoError(t, err)
	assert.Equal(t, "https://zzz999.execute-api.eu-west-1.amazonaws.com", topo.APIEndpoint)
}

func TestAWSResolver_ListErrorsAbort(t *testing.T) {
	s3c, cfc, r53, apigw := fullFakes()
	cfc.err = errors.New("AccessDenied")
	resolver := NewAWSResolverWithClients(s3c, cfc, r53, apigw, zerolog.Nop())

	_, err := resolver.Resolve(context.Background(), testStackConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list distributions")
}

func TestAWSResolver_ZoneNameMismatchSkipped(t *testing.T) {
	s3c, cfc, r53, apigw := fullFakes()
	r53.zones = []r53types.HostedZone{
		{Id: aws.String("/hostedzone/ZOTHER"), Name: aws.String("unrelated.org.")},
	}
	resolver := NewAWSResolverWithClients(s3c, cfc, r53, apigw, zerolog.Nop())

	topo, err := resolver.Resolve(context.Background(), testStackConfig())
	require.NoError(t, err)
	assert.Empty(t, topo.HostedZoneID)
	assert.Empty(t, topo.ZoneNameservers)
}
