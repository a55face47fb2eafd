package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
)

type Identity struct {
	Account string
	ARN     string
	UserID  string
}

// Principal returns the ARN without the arn:aws:iam::<account>: qualifier, e.g. user/alice.
func (id Identity) Principal() string {
	return strings.Replace(id.ARN, fmt.Sprintf("arn:aws:iam::%v:", id.Account), "", 1)
}

func (id Identity) String() string {
	return fmt.Sprintf("Using account #%v, \"%v\".", id.Account, id.Principal())
}

// WhoAmI returns the identity of the credentials used by the STS client.
func WhoAmI(ctx context.Context, client stsiface.STSAPI) (*Identity, error) {
	response, err := client.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, err
	}

	return &Identity{
		Account: aws.StringValue(response.Account),
		ARN:     aws.StringValue(response.Arn),
		UserID:  aws.StringValue(response.UserId),
	}, nil
}

// Alias returns the IAM account alias, or "" if the account does not have one.
func Alias(ctx context.Context, client iamiface.IAMAPI) (string, error) {
	response, err := client.ListAccountAliasesWithContext(ctx, &iam.ListAccountAliasesInput{})
	if err != nil {
		return "", err
	}

	for _, alias := range response.AccountAliases {
		if a := aws.StringValue(alias); a != "" {
			return a, nil
		}
	}

	return "", nil
}
