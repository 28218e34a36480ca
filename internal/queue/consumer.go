package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"mirror-backend/internal/shared/telemetry"
)

// ReceiveAPI is the part of the SQS client used for consuming.
type ReceiveAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Delivery is one received message.
type Delivery struct {
	MessageID    string
	Body         string
	ReceiveCount int
}

// Handler processes a delivery. Returning true deletes the message;
// false leaves it to reappear after the visibility timeout.
type Handler func(ctx context.Context, d Delivery) bool

// Consumer long-polls an SQS queue and hands each message to Handle with
// at most Concurrency in flight.
type Consumer struct {
	API             ReceiveAPI
	QueueURL        string
	Handle          Handler
	Concurrency     int
	Visibility      time.Duration
	ShutdownTimeout time.Duration
	// ErrorBackoff is the pause after a failed receive.
	ErrorBackoff time.Duration
}

// Run polls until ctx is cancelled, then waits up to ShutdownTimeout for
// in-flight handlers. Handlers run on a context that outlives ctx so a
// lead already being notified is not cut off.
func (c *Consumer) Run(ctx context.Context) error {
	if c.API == nil || c.Handle == nil || strings.TrimSpace(c.QueueURL) == "" {
		return errors.New("consumer requires an api, a queue url and a handler")
	}

	var g errgroup.Group
	g.SetLimit(max(1, c.Concurrency))
	work := context.WithoutCancel(ctx)

	for ctx.Err() == nil {
		out, err := c.API.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.QueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(c.Visibility / time.Second),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.Error("queue.receive_failed", map[string]any{"error": err.Error()})
			c.pause(ctx)
			continue
		}
		for _, msg := range out.Messages {
			g.Go(func() error {
				c.dispatch(work, msg)
				return nil
			})
		}
	}

	return c.drain(&g)
}

func (c *Consumer) dispatch(ctx context.Context, msg sqstypes.Message) {
	d := Delivery{
		MessageID:    aws.ToString(msg.MessageId),
		Body:         aws.ToString(msg.Body),
		ReceiveCount: receiveCount(msg),
	}
	if !c.Handle(ctx, d) {
		return
	}
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("queue.delete_failed", map[string]any{"sqs_message_id": d.MessageID, "error": "missing receipt handle"})
		return
	}
	if _, err := c.API.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.QueueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		telemetry.Error("queue.delete_failed", map[string]any{"sqs_message_id": d.MessageID, "error": err.Error()})
	}
}

func (c *Consumer) drain(g *errgroup.Group) error {
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	timeout := c.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %s with handlers in flight", timeout)
	}
}

func (c *Consumer) pause(ctx context.Context) {
	backoff := c.ErrorBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(backoff):
	}
}

func receiveCount(msg sqstypes.Message) int {
	n, err := strconv.Atoi(msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil {
		return 0
	}
	return n
}
