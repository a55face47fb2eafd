package provision

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Access int

const (
	Read Access = iota + 1
	Write
)

func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

var (
	ErrNoAccess   = errors.New("one of read or write access is required")
	ErrBothAccess = errors.New("read and write access are mutually exclusive")
)

// AccessFor resolves the read/write command line flags, exactly one of which must be set.
func AccessFor(read, write bool) (Access, error) {
	switch {
	case read && write:
		return 0, ErrBothAccess
	case read:
		return Read, nil
	case write:
		return Write, nil
	default:
		return 0, ErrNoAccess
	}
}

type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

type Statement struct {
	Sid      string   `json:"Sid"`
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

var actions = map[Access][]string{
	Read: {
		"s3:ListBucket",
		"s3:GetObject",
		"s3:GetObjectAcl",
		"s3:GetObjectTagging",
	},
	Write: {
		"s3:ListBucket",
		"s3:PutObject",
		"s3:PutObjectAcl",
		"s3:PutObjectTagging",
	},
}

func BucketARN(bucket string) string {
	return fmt.Sprintf("arn:aws:s3:::%v", bucket)
}

// NewPolicyDocument returns the read-only or write-only policy for a bucket and its objects.
func NewPolicyDocument(bucket string, access Access) (*PolicyDocument, error) {
	list, ok := actions[access]
	if !ok {
		return nil, ErrNoAccess
	}

	arn := BucketARN(bucket)

	return &PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{
			{
				Sid:      "ListAllBuckets",
				Effect:   "Allow",
				Action:   []string{"s3:ListAllMyBuckets"},
				Resource: []string{"*"},
			},
			{
				Sid:      "EvidenceBucket",
				Effect:   "Allow",
				Action:   append([]string{}, list...),
				Resource: []string{arn, arn + "/*"},
			},
		},
	}, nil
}

func (p PolicyDocument) JSON() (string, error) {
	bytes, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}
