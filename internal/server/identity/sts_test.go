package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fileferry/internal/common"
)

func TestSTSProvider_IssueEphemeralCredentials(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origAssume := assumeRole
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		assumeRole = origAssume
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}

	var gotInput *sts.AssumeRoleInput
	expiry := time.Now().Add(15 * time.Minute)
	assumeRole = func(c *sts.Client, ctx context.Context, in *sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error) {
		gotInput = in
		return &sts.AssumeRoleOutput{
			Credentials: &types.Credentials{
				AccessKeyId:     aws.String("AKIATESTKEY"),
				SecretAccessKey: aws.String("secret"),
				SessionToken:    aws.String("token"),
				Expiration:      aws.Time(expiry),
			},
		}, nil
	}

	p := NewSTSProvider("arn:aws:iam::123456789012:role/ferry-read", "eu-west-1")
	creds, err := p.IssueEphemeralCredentials(context.Background(), "svc-account", Scope{SourceBucket: "exports"})
	require.NoError(t, err)

	assert.Equal(t, "AKIATESTKEY", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
	assert.Equal(t, "token", creds.SessionToken)
	assert.Equal(t, "eu-west-1", creds.Region)
	assert.WithinDuration(t, expiry, creds.Expiration, time.Second)

	require.NotNil(t, gotInput)
	assert.Equal(t, "arn:aws:iam::123456789012:role/ferry-read", aws.ToString(gotInput.RoleArn))
	assert.Equal(t, int32(900), aws.ToInt32(gotInput.DurationSeconds))
	tags := map[string]string{}
	for _, tag := range gotInput.Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	assert.Equal(t, "svc-account", tags["Subject"])
	assert.Equal(t, "exports", tags["SourceBucket"])
}

func TestSTSProvider_AssumeRoleError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origAssume := assumeRole
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		assumeRole = origAssume
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	assumeRole = func(c *sts.Client, ctx context.Context, in *sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error) {
		return nil, errors.New("access denied")
	}

	p := NewSTSProvider("arn:aws:iam::123456789012:role/ferry-read", "eu-west-1")
	_, err := p.IssueEphemeralCredentials(context.Background(), "svc-account", Scope{SourceBucket: "exports"})
	assert.ErrorIs(t, err, common.ErrCredentialIssuance)
}

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		Region:          "us-east-1",
		Validity:        time.Minute,
	}
	creds, err := p.IssueEphemeralCredentials(context.Background(), "svc", Scope{SourceBucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)
	assert.WithinDuration(t, time.Now().Add(time.Minute), creds.Expiration, time.Second)
}
