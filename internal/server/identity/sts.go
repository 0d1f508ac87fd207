package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newSTSClientFromConfig = func(cfg aws.Config) *sts.Client {
		return sts.NewFromConfig(cfg)
	}

	assumeRole = func(c *sts.Client, ctx context.Context, in *sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error) {
		return c.AssumeRole(ctx, in)
	}
)

// STSProvider obtains temporary credentials via AWS STS AssumeRole. The role
// is expected to grant read-only access to source buckets; the hard
// authorization window is enforced by the session TTL, not by the STS
// credential lifetime (STS will not go below 900 seconds).
type STSProvider struct {
	roleArn string
	region  string
}

func NewSTSProvider(roleArn, region string) *STSProvider {
	return &STSProvider{roleArn: roleArn, region: region}
}

func (p *STSProvider) IssueEphemeralCredentials(ctx context.Context, subject string, scope Scope) (*models.Credentials, error) {
	cfg, err := loadDefaultAWSConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return nil, fmt.Errorf("%w: aws config: %w", common.ErrCredentialIssuance, err)
	}

	client := newSTSClientFromConfig(cfg)

	sessionName := fmt.Sprintf("fileferry-%d", time.Now().UnixMilli())

	out, err := assumeRole(client, ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(p.roleArn),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(900), // STS minimum
		Tags: []types.Tag{
			{Key: aws.String("Subject"), Value: aws.String(subject)},
			{Key: aws.String("SourceBucket"), Value: aws.String(scope.SourceBucket)},
			{Key: aws.String("Application"), Value: aws.String("FileFerry")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: assume role: %w", common.ErrCredentialIssuance, err)
	}

	creds := out.Credentials
	return &models.Credentials{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		Region:          p.region,
		Expiration:      aws.ToTime(creds.Expiration),
	}, nil
}
