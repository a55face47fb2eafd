package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	buckets  map[string]*s3.CreateBucketInput
	blocks   map[string]*s3.PublicAccessBlockConfiguration
	headErr  error
	creates  int
	blockErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets: map[string]*s3.CreateBucketInput{},
		blocks:  map[string]*s3.PublicAccessBlockConfiguration{},
	}
}

func (f *fakeS3) HeadBucketWithContext(ctx aws.Context, in *s3.HeadBucketInput, opts ...request.Option) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}

	if _, ok := f.buckets[aws.StringValue(in.Bucket)]; !ok {
		return nil, awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), 404, "rq-1")
	}

	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucketWithContext(ctx aws.Context, in *s3.CreateBucketInput, opts ...request.Option) (*s3.CreateBucketOutput, error) {
	f.creates++
	f.buckets[aws.StringValue(in.Bucket)] = in

	return &s3.CreateBucketOutput{Location: aws.String("/" + aws.StringValue(in.Bucket))}, nil
}

func (f *fakeS3) PutPublicAccessBlockWithContext(ctx aws.Context, in *s3.PutPublicAccessBlockInput, opts ...request.Option) (*s3.PutPublicAccessBlockOutput, error) {
	if f.blockErr != nil {
		return nil, f.blockErr
	}

	f.blocks[aws.StringValue(in.Bucket)] = in.PublicAccessBlockConfiguration

	return &s3.PutPublicAccessBlockOutput{}, nil
}

type fakeIAM struct {
	iamiface.IAMAPI
	policies  []*iam.Policy
	documents map[string]string
	users     map[string][]*iam.Tag
	attached  map[string]map[string]bool
	attaches  int
	truncated bool
	listErr   error
	createErr error
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{
		documents: map[string]string{},
		users:     map[string][]*iam.Tag{},
		attached:  map[string]map[string]bool{},
	}
}

func (f *fakeIAM) ListPoliciesWithContext(ctx aws.Context, in *iam.ListPoliciesInput, opts ...request.Option) (*iam.ListPoliciesOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	if aws.StringValue(in.Scope) != iam.PolicyScopeTypeLocal {
		return nil, fmt.Errorf("unexpected scope %v", aws.StringValue(in.Scope))
	}

	return &iam.ListPoliciesOutput{
		Policies:    f.policies,
		IsTruncated: aws.Bool(f.truncated),
	}, nil
}

func (f *fakeIAM) CreatePolicyWithContext(ctx aws.Context, in *iam.CreatePolicyInput, opts ...request.Option) (*iam.CreatePolicyOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}

	name := aws.StringValue(in.PolicyName)
	for _, p := range f.policies {
		if aws.StringValue(p.PolicyName) == name {
			return nil, awserr.New(iam.ErrCodeEntityAlreadyExistsException, "policy exists", nil)
		}
	}

	policy := iam.Policy{
		PolicyName: aws.String(name),
		Arn:        aws.String("arn:aws:iam::123456789012:policy/" + name),
	}

	f.policies = append(f.policies, &policy)
	f.documents[name] = aws.StringValue(in.PolicyDocument)

	return &iam.CreatePolicyOutput{Policy: &policy}, nil
}

func (f *fakeIAM) CreateUserWithContext(ctx aws.Context, in *iam.CreateUserInput, opts ...request.Option) (*iam.CreateUserOutput, error) {
	user := aws.StringValue(in.UserName)
	if _, ok := f.users[user]; ok {
		return nil, awserr.New(iam.ErrCodeEntityAlreadyExistsException, "User with name "+user+" already exists.", nil)
	}

	f.users[user] = in.Tags

	return &iam.CreateUserOutput{User: &iam.User{UserName: in.UserName}}, nil
}

func (f *fakeIAM) AttachUserPolicyWithContext(ctx aws.Context, in *iam.AttachUserPolicyInput, opts ...request.Option) (*iam.AttachUserPolicyOutput, error) {
	user := aws.StringValue(in.UserName)
	if _, ok := f.users[user]; !ok {
		return nil, awserr.New(iam.ErrCodeNoSuchEntityException, "no such user", nil)
	}

	if f.attached[user] == nil {
		f.attached[user] = map[string]bool{}
	}

	f.attaches++
	f.attached[user][aws.StringValue(in.PolicyArn)] = true

	return &iam.AttachUserPolicyOutput{}, nil
}

func TestProvision(t *testing.T) {
	s3client := newFakeS3()
	iamclient := newFakeIAM()
	p := NewProvisioner(s3client, iamclient, "us-east-1")

	report := p.Provision(context.Background(), Request{
		Bucket: "govready-es-srv-01",
		Policy: "govready-es-srv-01+read",
		User:   "govready-es-srv-01+read",
		Access: Read,
	})

	require.NoError(t, report.Err())
	assert.True(t, report.BucketCreated)
	assert.True(t, report.Policy.Created)
	assert.True(t, report.UserCreated)
	assert.True(t, report.Attached)

	assert.Equal(t, "arn:aws:iam::123456789012:policy/govready-es-srv-01+read", report.Policy.ARN)
	assert.Equal(t, []*iam.Tag{{Key: aws.String("created-by"), Value: aws.String("govready:es-credentials")}}, iamclient.users["govready-es-srv-01+read"])
	assert.True(t, iamclient.attached["govready-es-srv-01+read"][report.Policy.ARN])

	block := s3client.blocks["govready-es-srv-01"]
	require.NotNil(t, block)
	assert.True(t, aws.BoolValue(block.BlockPublicAcls))
	assert.True(t, aws.BoolValue(block.IgnorePublicAcls))
	assert.True(t, aws.BoolValue(block.BlockPublicPolicy))
	assert.True(t, aws.BoolValue(block.RestrictPublicBuckets))
	assert.Equal(t, s3.BucketCannedACLPrivate, aws.StringValue(s3client.buckets["govready-es-srv-01"].ACL))
}

func TestProvisionIsIdempotent(t *testing.T) {
	s3client := newFakeS3()
	iamclient := newFakeIAM()
	p := NewProvisioner(s3client, iamclient, "us-east-1")

	rq := Request{
		Bucket: "govready-es-srv-01",
		Policy: "govready-es-srv-01+write",
		User:   "govready-es-srv-01+write",
		Access: Write,
	}

	first := p.Provision(context.Background(), rq)
	second := p.Provision(context.Background(), rq)

	require.NoError(t, first.Err())
	require.NoError(t, second.Err())

	assert.False(t, second.BucketCreated)
	assert.False(t, second.Policy.Created)
	assert.False(t, second.UserCreated)
	assert.True(t, second.Attached)
	assert.Equal(t, first.Policy.ARN, second.Policy.ARN)

	assert.Equal(t, 1, s3client.creates)
	assert.Len(t, s3client.buckets, 1)
	assert.Len(t, iamclient.policies, 1)
	assert.Len(t, iamclient.users, 1)
	assert.Equal(t, 2, iamclient.attaches, "expected policy to be (re)attached on every run")
	assert.Equal(t, map[string]bool{first.Policy.ARN: true}, iamclient.attached["govready-es-srv-01+write"])
}

func TestEnsureBucketLocationConstraint(t *testing.T) {
	tests := []struct {
		region   string
		expected *s3.CreateBucketConfiguration
	}{
		{"us-east-1", nil},
		{"", nil},
		{"eu-west-1", &s3.CreateBucketConfiguration{LocationConstraint: aws.String("eu-west-1")}},
		{"us-west-2", &s3.CreateBucketConfiguration{LocationConstraint: aws.String("us-west-2")}},
	}

	for _, test := range tests {
		s3client := newFakeS3()
		p := NewProvisioner(s3client, newFakeIAM(), test.region)

		created, err := p.EnsureBucket(context.Background(), "evidence")
		require.NoError(t, err)
		assert.True(t, created)

		assert.Equalf(t, test.expected, s3client.buckets["evidence"].CreateBucketConfiguration, "region %q", test.region)
	}
}

func TestEnsureBucketProbeError(t *testing.T) {
	s3client := newFakeS3()
	s3client.headErr = awserr.NewRequestFailure(awserr.New("Forbidden", "Forbidden", nil), 403, "rq-2")

	p := NewProvisioner(s3client, newFakeIAM(), "us-east-1")

	created, err := p.EnsureBucket(context.Background(), "someone-elses-bucket")
	assert.Error(t, err)
	assert.False(t, created)
	assert.Zero(t, s3client.creates)
}

func TestEnsureBucketNoSuchBucket(t *testing.T) {
	s3client := newFakeS3()
	s3client.headErr = awserr.New(s3.ErrCodeNoSuchBucket, "no such bucket", nil)

	p := NewProvisioner(s3client, newFakeIAM(), "us-east-1")

	created, err := p.EnsureBucket(context.Background(), "evidence")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestProvisionContinuesAfterBucketError(t *testing.T) {
	s3client := newFakeS3()
	s3client.headErr = awserr.NewRequestFailure(awserr.New("Forbidden", "Forbidden", nil), 403, "rq-3")
	iamclient := newFakeIAM()

	report := NewProvisioner(s3client, iamclient, "us-east-1").Provision(context.Background(), Request{
		Bucket: "evidence",
		Policy: "evidence+read",
		User:   "auditor",
		Access: Read,
	})

	require.Len(t, report.Errors, 1)
	assert.Equal(t, StepBucket, report.Errors[0].Step)
	assert.Error(t, report.Err())

	assert.True(t, report.Policy.Created)
	assert.True(t, report.UserCreated)
	assert.True(t, report.Attached)
}

func TestProvisionReportsBucketCreatedWhenBlockFails(t *testing.T) {
	s3client := newFakeS3()
	s3client.blockErr = errors.New("AccessDenied")

	report := NewProvisioner(s3client, newFakeIAM(), "us-east-1").Provision(context.Background(), Request{
		Bucket: "evidence",
		Policy: "evidence+write",
		Access: Write,
	})

	require.Len(t, report.Errors, 1)
	assert.Equal(t, StepBucket, report.Errors[0].Step)
	assert.True(t, report.BucketCreated)
	assert.Equal(t, 1, s3client.creates)
	assert.True(t, report.Policy.Created)
}

func TestProvisionSkipsAttachWithoutPolicy(t *testing.T) {
	iamclient := newFakeIAM()
	iamclient.listErr = errors.New("AccessDenied")

	report := NewProvisioner(newFakeS3(), iamclient, "us-east-1").Provision(context.Background(), Request{
		Bucket: "evidence",
		Policy: "evidence+read",
		User:   "auditor",
		Access: Read,
	})

	require.Len(t, report.Errors, 2)
	assert.Equal(t, StepPolicy, report.Errors[0].Step)
	assert.Equal(t, StepAttach, report.Errors[1].Step)
	assert.ErrorIs(t, report.Err(), ErrNoPolicy)

	assert.True(t, report.UserCreated)
	assert.False(t, report.Attached)
	assert.Zero(t, iamclient.attaches)
}

func TestProvisionWithoutUser(t *testing.T) {
	iamclient := newFakeIAM()

	report := NewProvisioner(newFakeS3(), iamclient, "us-east-1").Provision(context.Background(), Request{
		Bucket: "evidence",
		Policy: "evidence+read",
		Access: Read,
	})

	require.NoError(t, report.Err())
	assert.True(t, report.Policy.Created)
	assert.Empty(t, iamclient.users)
	assert.Zero(t, iamclient.attaches)
}

func TestEnsurePolicyReusesExisting(t *testing.T) {
	iamclient := newFakeIAM()
	iamclient.policies = []*iam.Policy{
		{PolicyName: aws.String("other"), Arn: aws.String("arn:aws:iam::123456789012:policy/other")},
		{PolicyName: aws.String("evidence+read"), Arn: aws.String("arn:aws:iam::123456789012:policy/evidence+read")},
	}

	policy, err := NewProvisioner(newFakeS3(), iamclient, "").EnsurePolicy(context.Background(), "evidence+read", "evidence", Write)
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:iam::123456789012:policy/evidence+read", policy.ARN)
	assert.False(t, policy.Created)
	assert.Len(t, iamclient.policies, 2)
}

func TestEnsurePolicyDocument(t *testing.T) {
	tests := []struct {
		access  Access
		actions []string
	}{
		{Read, []string{"s3:ListBucket", "s3:GetObject", "s3:GetObjectAcl", "s3:GetObjectTagging"}},
		{Write, []string{"s3:ListBucket", "s3:PutObject", "s3:PutObjectAcl", "s3:PutObjectTagging"}},
	}

	for _, test := range tests {
		iamclient := newFakeIAM()
		name := "evidence+" + test.access.String()

		_, err := NewProvisioner(newFakeS3(), iamclient, "").EnsurePolicy(context.Background(), name, "evidence", test.access)
		require.NoError(t, err)

		var document PolicyDocument
		require.NoError(t, json.Unmarshal([]byte(iamclient.documents[name]), &document))

		assert.Equal(t, "2012-10-17", document.Version)
		require.Len(t, document.Statement, 2)
		assert.Equal(t, []string{"s3:ListAllMyBuckets"}, document.Statement[0].Action)
		assert.Equal(t, []string{"*"}, document.Statement[0].Resource)
		assert.Equal(t, test.actions, document.Statement[1].Action)
		assert.Equal(t, []string{"arn:aws:s3:::evidence", "arn:aws:s3:::evidence/*"}, document.Statement[1].Resource)
	}
}

func TestEnsurePolicyReportsTruncatedListing(t *testing.T) {
	iamclient := newFakeIAM()
	iamclient.truncated = true

	policy, err := NewProvisioner(newFakeS3(), iamclient, "").EnsurePolicy(context.Background(), "evidence+read", "evidence", Read)
	require.NoError(t, err)

	assert.True(t, policy.Created)
	assert.True(t, policy.Truncated)
}

func TestEnsurePolicyCreateError(t *testing.T) {
	iamclient := newFakeIAM()
	iamclient.createErr = awserr.New(iam.ErrCodeMalformedPolicyDocumentException, "bad policy", nil)

	_, err := NewProvisioner(newFakeS3(), iamclient, "").EnsurePolicy(context.Background(), "evidence+read", "evidence", Read)

	var aerr awserr.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, iam.ErrCodeMalformedPolicyDocumentException, aerr.Code())
}

func TestEnsureUserAlreadyExists(t *testing.T) {
	iamclient := newFakeIAM()
	iamclient.users["auditor"] = nil

	created, err := NewProvisioner(newFakeS3(), iamclient, "").EnsureUser(context.Background(), "auditor")

	require.NoError(t, err)
	assert.False(t, created)
}

func TestAccessFor(t *testing.T) {
	access, err := AccessFor(true, false)
	require.NoError(t, err)
	assert.Equal(t, Read, access)

	access, err = AccessFor(false, true)
	require.NoError(t, err)
	assert.Equal(t, Write, access)

	_, err = AccessFor(true, true)
	assert.ErrorIs(t, err, ErrBothAccess)

	_, err = AccessFor(false, false)
	assert.ErrorIs(t, err, ErrNoAccess)
}
