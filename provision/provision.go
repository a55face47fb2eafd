// Package provision creates the evidence bucket, an access policy for the bucket and an IAM user
// bound to the policy.
//
// Every step checks for an existing resource before creating one, so provisioning can be rerun
// with the same arguments without creating duplicates. Steps are independent and best effort: a
// failed step is recorded in the Report and the remaining steps still run.
package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const (
	DefaultRegion = "us-east-1"
	CreatedByTag  = "created-by"
	CreatedBy     = "govready:es-credentials"
)

var ErrNoPolicy = errors.New("no policy to attach")

type Step string

const (
	StepBucket Step = "bucket"
	StepPolicy Step = "policy"
	StepUser   Step = "user"
	StepAttach Step = "attach"
)

type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%v: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Request struct {
	Bucket string
	Policy string
	User   string
	Access Access
}

type Policy struct {
	ARN       string
	Created   bool
	Truncated bool
}

type Report struct {
	BucketCreated bool
	Policy        Policy
	UserCreated   bool
	Attached      bool
	Errors        []*StepError
}

// Err returns the step errors joined into a single error, or nil if every step succeeded.
func (r *Report) Err() error {
	list := make([]error, 0, len(r.Errors))
	for _, err := range r.Errors {
		list = append(list, err)
	}

	return errors.Join(list...)
}

func (r *Report) fail(step Step, err error) {
	r.Errors = append(r.Errors, &StepError{Step: step, Err: err})
}

type Provisioner struct {
	s3     s3iface.S3API
	iam    iamiface.IAMAPI
	region string
}

func NewProvisioner(s3client s3iface.S3API, iamclient iamiface.IAMAPI, region string) *Provisioner {
	if region == "" {
		region = DefaultRegion
	}

	return &Provisioner{
		s3:     s3client,
		iam:    iamclient,
		region: region,
	}
}

// Provision runs the bucket, policy, user and attach steps in order. The user and attach steps
// are skipped if the request does not name a user.
func (p *Provisioner) Provision(ctx context.Context, rq Request) *Report {
	report := Report{}

	created, err := p.EnsureBucket(ctx, rq.Bucket)
	report.BucketCreated = created
	if err != nil {
		report.fail(StepBucket, err)
	}

	if policy, err := p.EnsurePolicy(ctx, rq.Policy, rq.Bucket, rq.Access); err != nil {
		report.fail(StepPolicy, err)
	} else {
		report.Policy = *policy
	}

	if rq.User == "" {
		return &report
	}

	if created, err := p.EnsureUser(ctx, rq.User); err != nil {
		report.fail(StepUser, err)
	} else {
		report.UserCreated = created
	}

	if report.Policy.ARN == "" {
		report.fail(StepAttach, ErrNoPolicy)
	} else if err := p.Attach(ctx, rq.User, report.Policy.ARN); err != nil {
		report.fail(StepAttach, err)
	} else {
		report.Attached = true
	}

	return &report
}

// EnsureBucket creates a private bucket with all public access blocked if a HEAD request reports
// that the bucket does not exist. Returns true if the bucket was created.
func (p *Provisioner) EnsureBucket(ctx context.Context, bucket string) (bool, error) {
	_, err := p.s3.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})

	if err == nil {
		return false, nil
	} else if !isNotFound(err) {
		return false, err
	}

	request := s3.CreateBucketInput{
		ACL:    aws.String(s3.BucketCannedACLPrivate),
		Bucket: aws.String(bucket),
	}

	// us-east-1 rejects an explicit location constraint
	if p.region != DefaultRegion {
		request.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(p.region),
		}
	}

	if _, err := p.s3.CreateBucketWithContext(ctx, &request); err != nil {
		return false, fmt.Errorf("bucket creation failed (%w)", err)
	}

	block := s3.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}

	if _, err := p.s3.PutPublicAccessBlockWithContext(ctx, &block); err != nil {
		return true, fmt.Errorf("blocking public access failed (%w)", err)
	}

	return true, nil
}

// EnsurePolicy returns the ARN of the customer managed policy with the given name, creating it
// from the read or write template if it does not exist. Only the first page of policies is
// searched.
func (p *Provisioner) EnsurePolicy(ctx context.Context, name, bucket string, access Access) (*Policy, error) {
	response, err := p.iam.ListPoliciesWithContext(ctx, &iam.ListPoliciesInput{
		Scope: aws.String(iam.PolicyScopeTypeLocal),
	})
	if err != nil {
		return nil, err
	}

	for _, policy := range response.Policies {
		if aws.StringValue(policy.PolicyName) == name {
			return &Policy{ARN: aws.StringValue(policy.Arn)}, nil
		}
	}

	document, err := NewPolicyDocument(bucket, access)
	if err != nil {
		return nil, err
	}

	js, err := document.JSON()
	if err != nil {
		return nil, err
	}

	created, err := p.iam.CreatePolicyWithContext(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(js),
		Description:    aws.String(fmt.Sprintf("%v access to evidence bucket %v", access, bucket)),
	})
	if err != nil {
		return nil, fmt.Errorf("policy creation failed (%w)", err)
	} else if created.Policy == nil || aws.StringValue(created.Policy.Arn) == "" {
		return nil, fmt.Errorf("policy creation failed (no ARN in response)")
	}

	return &Policy{
		ARN:       aws.StringValue(created.Policy.Arn),
		Created:   true,
		Truncated: aws.BoolValue(response.IsTruncated),
	}, nil
}

// EnsureUser creates an IAM user tagged with its provenance. An existing user is not an error.
// Returns true if the user was created.
func (p *Provisioner) EnsureUser(ctx context.Context, user string) (bool, error) {
	_, err := p.iam.CreateUserWithContext(ctx, &iam.CreateUserInput{
		UserName: aws.String(user),
		Tags: []*iam.Tag{
			{
				Key:   aws.String(CreatedByTag),
				Value: aws.String(CreatedBy),
			},
		},
	})

	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == iam.ErrCodeEntityAlreadyExistsException {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// Attach attaches the policy to the user. Attaching an already attached policy is a no-op.
func (p *Provisioner) Attach(ctx context.Context, user, arn string) error {
	_, err := p.iam.AttachUserPolicyWithContext(ctx, &iam.AttachUserPolicyInput{
		UserName:  aws.String(user),
		PolicyArn: aws.String(arn),
	})

	return err
}

func isNotFound(err error) bool {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound {
		return true
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "NotFound", s3.ErrCodeNoSuchBucket:
			return true
		}
	}

	return false
}
