package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"gwi.com/verbal-diary/internal/core"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string
}

// S3Mirror writes through to a local archive and then copies each object to a
// bucket. Upload failures are logged; the local copy is authoritative.
type S3Mirror struct {
	local  core.AudioArchive
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

func NewS3Mirror(ctx context.Context, local core.AudioArchive, cfg S3Config, logger *slog.Logger) (*S3Mirror, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Mirror(local, client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Mirror(local core.AudioArchive, client objectPutter, bucket, prefix string, logger *slog.Logger) *S3Mirror {
	return &S3Mirror{local: local, client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (m *S3Mirror) SaveAudio(ctx context.Context, name string, data []byte) (string, error) {
	p, err := m.local.SaveAudio(ctx, name, data)
	if err != nil {
		return "", err
	}
	m.upload(ctx, name, data, contentType(name))
	return p, nil
}

func (m *S3Mirror) SaveTranscript(ctx context.Context, name, text string) error {
	if err := m.local.SaveTranscript(ctx, name, text); err != nil {
		return err
	}
	m.upload(ctx, name, []byte(text), "text/plain; charset=utf-8")
	return nil
}

func (m *S3Mirror) upload(ctx context.Context, name string, data []byte, ctype string) {
	key := path.Join(m.prefix, path.Base(name))
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ctype),
	})
	if err != nil {
		m.logger.Warn("failed to mirror object to S3", "bucket", m.bucket, "key", key, "error", err)
		return
	}
	m.logger.Debug("object mirrored to S3", "bucket", m.bucket, "key", key, "bytes", len(data))
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
