package awsclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/insight-compliance-api/pkg/config"
)

func TestLoadUsesStaticCredentials(t *testing.T) {
	cfg := config.AWSConfig{
		Region:          "us-east-2",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		MaxAttempts:     5,
	}

	awsCfg, err := Load(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-east-2", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)

	clients := NewClients(awsCfg, config.AWSConfig{EndpointURL: "http://localhost:4566"})
	assert.NotNil(t, clients.DynamoDB)
	assert.NotNil(t, clients.CloudWatchLogs)
	assert.NotNil(t, clients.SNS)
}
