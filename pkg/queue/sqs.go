package queue

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSEvent is one message on analysis_queue or analysis_results (spec §6.3):
// a queue-transport envelope around an AnalysisTask or its outcome,
// carrying the delivery bookkeeping the consumer needs for at-least-once
// semantics and DLQ routing.
type SQSEvent struct {
	TaskID     string          `json:"task_id"`
	EventType  string          `json:"event_type"` // "analysis_task" or "analysis_result"
	ClientName string          `json:"client_name"`
	Priority   int             `json:"priority"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
}

// DeadLetterEnvelope is the shape carried on dlq.analysis/dlq.cache
// (spec §6.3: "{original, last_error, attempts}").
type DeadLetterEnvelope struct {
	Original  SQSEvent `json:"original"`
	LastError string   `json:"last_error"`
	Attempts  int      `json:"attempts"`
}

type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, input *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSClient struct {
	Client   SQSAPI
	QueueURL string
}

func NewSQSClient(ctx context.Context) (*SQSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(cfg)
	queueURL := os.Getenv("SQS_QUEUE_URL")
	return &SQSClient{Client: client, QueueURL: queueURL}, nil
}

// NewSQSClientWithAPI allows injecting a custom SQSAPI (for testing)
func NewSQSClientWithAPI(api SQSAPI, queueURL string) *SQSClient {
	return &SQSClient{Client: api, QueueURL: queueURL}
}

func (q *SQSClient) EnqueueEvent(ctx context.Context, event SQSEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = q.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.QueueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}

func (q *SQSClient) ReceiveEvents(ctx context.Context, maxMessages int32, waitSeconds int32) ([]SQSEvent, []string, error) {
	resp, err := q.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.QueueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitSeconds,
	})
	if err != nil {
		return nil, nil, err
	}
	var events []SQSEvent
	var receiptHandles []string
	for _, msg := range resp.Messages {
		var event SQSEvent
		if err := json.Unmarshal([]byte(*msg.Body), &event); err == nil {
			events = append(events, event)
			receiptHandles = append(receiptHandles, *msg.ReceiptHandle)
		}
	}
	return events, receiptHandles, nil
}

func (q *SQSClient) DeleteMessage(ctx context.Context, receiptHandle string) error {
	_, err := q.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.QueueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return err
}
