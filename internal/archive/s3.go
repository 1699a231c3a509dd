// Package archive keeps a copy of every uploaded import file in S3, so an
// import log can always be traced back to the exact bytes it came from.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// PutObjectAPI is the part of the S3 client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures an S3Archiver.
type Config struct {
	Bucket    string
	Prefix    string // default "imports"
	Region    string
	Endpoint  string // S3-compatible endpoint, e.g. MinIO; path-style addressing is used when set
	AccessKey string
	SecretKey string
}

var contentTypes = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// S3Archiver implements core.Archiver.
type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// New loads the AWS configuration and creates the S3 client.
func New(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *S3Archiver {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "imports"
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Archive uploads data under <prefix>/<event>/<timestamp>-<name> and returns
// its s3:// location.
func (a *S3Archiver) Archive(ctx context.Context, eventID uuid.UUID, name string, data []byte) (string, error) {
	key := path.Join(a.prefix, eventID.String(), a.now().UTC().Format("20060102T150405Z")+"-"+safeName(name))

	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		contentType = "application/octet-stream"
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"event-id":      eventID.String(),
			"original-name": safeName(name),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}

// safeName keeps the base name of an upload and replaces characters that
// are awkward in object keys.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
