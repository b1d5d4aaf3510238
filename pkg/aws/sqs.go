package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSClient delivers order events straight to a queue when no SNS topic
// fans them out.
type SQSClient struct {
	client *sqs.Client
}

func NewSQSClient(cfg sdkaws.Config) *SQSClient {
	return &SQSClient{client: sqs.NewFromConfig(cfg)}
}

func (s *SQSClient) Publish(ctx context.Context, queueURL string, message []byte) error {
	if queueURL == "" {
		return fmt.Errorf("empty queueURL")
	}
	_, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(queueURL),
		MessageBody: sdkaws.String(string(message)),
	})
	if err != nil {
		return fmt.Errorf("sqs send failed for queue %s: %w", queueURL, err)
	}
	return nil
}
