package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/cutout/internal/common"
	sc "github.com/dmitrijs2005/cutout/internal/server/config"
	"github.com/google/uuid"
)

// ExportLinkTTL is the lifetime of presigned archive links.
const ExportLinkTTL = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ExportService copies finished bulk archives to an S3-compatible bucket and
// hands out short-lived download links.
type ExportService struct {
	config *sc.Config
	now    func() time.Time
}

func NewExportService(config *sc.Config) *ExportService {
	return &ExportService{config: config, now: time.Now}
}

// Enabled reports whether a bucket is configured.
func (s *ExportService) Enabled() bool {
	return s.config.ExportEnabled()
}

// StorageKey returns a fresh object key for an owner's archive.
func (s *ExportService) StorageKey(owner int64) string {
	d := s.now()
	return fmt.Sprintf("exports/%d/%d/%d/%d/%v.zip", owner, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) getClients(ctx context.Context) (*s3.Client, *s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return client, newS3PresignClient(client), nil
}

// Export uploads archive and returns a presigned GET URL for it.
func (s *ExportService) Export(ctx context.Context, owner int64, archive []byte) (string, error) {
	if !s.Enabled() {
		return "", common.ErrorNotConfigured
	}

	client, presignClient, err := s.getClients(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := s.StorageKey(owner)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(archive),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket:                     &bucket,
		Key:                        &key,
		ResponseContentDisposition: aws.String(`attachment; filename="processed_images.zip"`),
	}, s3.WithPresignExpires(ExportLinkTTL))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}

	return req.URL, nil
}
