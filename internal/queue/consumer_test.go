package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSQS returns each batch once, then cancels the run.
type scriptedSQS struct {
	mu          sync.Mutex
	batches     [][]sqstypes.Message
	receiveErrs []error
	deleted     []string
	visibility  int32
	cancel      context.CancelFunc
}

func (f *scriptedSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visibility = in.VisibilityTimeout
	if len(f.receiveErrs) > 0 {
		err := f.receiveErrs[0]
		f.receiveErrs = f.receiveErrs[1:]
		return nil, err
	}
	if len(f.batches) == 0 {
		f.cancel()
		return nil, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *scriptedSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func sqsMsg(id, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "2"},
	}
}

func TestConsumerDeletesOnlyAcknowledgedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &scriptedSQS{
		batches: [][]sqstypes.Message{{sqsMsg("a", "ok"), sqsMsg("b", "retry")}, {sqsMsg("c", "ok")}},
		cancel:  cancel,
	}

	var mu sync.Mutex
	var seen []Delivery
	c := &Consumer{
		API:         api,
		QueueURL:    "https://sqs.example/leads",
		Concurrency: 2,
		Visibility:  90 * time.Second,
		Handle: func(_ context.Context, d Delivery) bool {
			mu.Lock()
			seen = append(seen, d)
			mu.Unlock()
			return d.Body == "ok"
		},
	}

	require.NoError(t, c.Run(ctx))

	assert.Len(t, seen, 3)
	assert.ElementsMatch(t, []string{"r-a", "r-c"}, api.deleted)
	assert.EqualValues(t, 90, api.visibility)
	for _, d := range seen {
		assert.Equal(t, 2, d.ReceiveCount)
	}
}

func TestConsumerBacksOffAfterReceiveError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &scriptedSQS{
		receiveErrs: []error{errors.New("throttled")},
		batches:     [][]sqstypes.Message{{sqsMsg("a", "ok")}},
		cancel:      cancel,
	}
	handled := 0
	c := &Consumer{
		API:          api,
		QueueURL:     "q",
		ErrorBackoff: time.Millisecond,
		Handle:       func(context.Context, Delivery) bool { handled++; return true },
	}

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, 1, handled)
}

func TestConsumerRunsHandlersPastCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &scriptedSQS{batches: [][]sqstypes.Message{{sqsMsg("a", "ok")}}, cancel: cancel}

	var handlerErr error
	c := &Consumer{
		API:      api,
		QueueURL: "q",
		Handle: func(hctx context.Context, _ Delivery) bool {
			<-ctx.Done()
			handlerErr = hctx.Err()
			return true
		},
	}

	require.NoError(t, c.Run(ctx))
	assert.NoError(t, handlerErr)
	assert.Equal(t, []string{"r-a"}, api.deleted)
}

func TestConsumerShutdownTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)
	api := &scriptedSQS{batches: [][]sqstypes.Message{{sqsMsg("a", "ok")}}, cancel: cancel}

	c := &Consumer{
		API:             api,
		QueueURL:        "q",
		ShutdownTimeout: 10 * time.Millisecond,
		Handle: func(context.Context, Delivery) bool {
			<-release
			return false
		},
	}

	assert.Error(t, c.Run(ctx))
}

func TestConsumerRequiresHandler(t *testing.T) {
	assert.Error(t, (&Consumer{API: &scriptedSQS{}, QueueURL: "q"}).Run(context.Background()))
}

func TestReceiveCountParsesAttribute(t *testing.T) {
	assert.Equal(t, 0, receiveCount(sqstypes.Message{}))
	assert.Equal(t, 3, receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}))
}
