// Package ocr wraps AWS Textract as an asynchronous start/poll text
// extraction capability.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// JobStatus is the external OCR job state as reported by Textract.
type JobStatus string

const (
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusSucceeded  JobStatus = "SUCCEEDED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusPartial    JobStatus = "PARTIAL_SUCCESS"
)

// Terminal reports whether the job will make no further progress.
func (s JobStatus) Terminal() bool {
	return s != JobStatusInProgress && s != ""
}

// JobResult is one poll's view of a job: the status, and when the job
// finished, the text assembled from every detected line.
type JobResult struct {
	Status JobStatus
	Text   string
}

// PollPolicy bounds a blocking wait on an external job. Exhausting the
// attempts is a timeout outcome, not a job failure; the job stays
// queryable afterwards.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy matches the reference client behavior of polling
// every 2.5s for at most 200 attempts (~500s).
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: 2500 * time.Millisecond, MaxAttempts: 200}
}

// ClientConfig holds configuration for the Textract client.
type ClientConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Client starts and polls Textract text-detection jobs against objects
// in a fixed S3 bucket.
type Client struct {
	api    textractAPI
	bucket string
}

type textractAPI interface {
	StartDocumentTextDetection(ctx context.Context, params *textract.StartDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.StartDocumentTextDetectionOutput, error)
	GetDocumentTextDetection(ctx context.Context, params *textract.GetDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.GetDocumentTextDetectionOutput, error)
}

// NewClient creates a Textract client for the given region and bucket.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		api:    textract.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

// StartJob requests asynchronous text detection for a stored object and
// returns the external job id.
func (c *Client) StartJob(ctx context.Context, storageKey string) (string, error) {
	out, err := c.api.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(c.bucket),
				Name:   aws.String(storageKey),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to start text detection: %w", err)
	}
	if out.JobId == nil || *out.JobId == "" {
		return "", errors.New("textract did not return a job id")
	}
	return *out.JobId, nil
}

// GetJob queries a job's status. For finished jobs it walks every
// result page and joins the detected LINE blocks with newlines.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobResult, error) {
	var nextToken *string
	var status JobStatus
	var lines []string

	for {
		out, err := c.api.GetDocumentTextDetection(ctx, &textract.GetDocumentTextDetectionInput{
			JobId:     aws.String(jobID),
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get text detection: %w", err)
		}

		status = JobStatus(out.JobStatus)
		for _, b := range out.Blocks {
			if b.BlockType == types.BlockTypeLine && b.Text != nil {
				lines = append(lines, *b.Text)
			}
		}

		nextToken = out.NextToken
		if nextToken == nil {
			break
		}
	}

	return &JobResult{
		Status: status,
		Text:   strings.Join(lines, "\n"),
	}, nil
}
