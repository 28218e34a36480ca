package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// fifoGroup orders every lead notification in one FIFO group.
const fifoGroup = "leads"

// SendAPI is the part of the SQS client used for publishing.
type SendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient publishes lead notifications to one queue. FIFO queues (URL
// ending in .fifo) get a shared group and the lead id as dedup id, so a
// retried contact step cannot notify the desk twice.
type SQSClient struct {
	api  SendAPI
	url  string
	fifo bool
}

func NewSQSClient(ctx context.Context, region, queueURL string) (*SQSClient, error) {
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("queue url is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSClientWith(sqs.NewFromConfig(cfg), queueURL), nil
}

func NewSQSClientWith(api SendAPI, queueURL string) *SQSClient {
	queueURL = strings.TrimSpace(queueURL)
	return &SQSClient{api: api, url: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	body, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode lead message: %w", err)
	}
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.url),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"version": {DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(max(msg.Version, 1)))},
		},
	}
	if s.fifo {
		in.MessageGroupId = aws.String(fifoGroup)
		in.MessageDeduplicationId = aws.String(msg.LeadID)
	}
	if _, err := s.api.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send lead=%s: %w", msg.LeadID, err)
	}
	return nil
}

var _ Client = (*SQSClient)(nil)
