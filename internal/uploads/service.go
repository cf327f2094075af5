package uploads

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Service hands out presigned URLs only; bytes never pass through the server.
type Service struct {
	bucket    string
	presigner *s3.PresignClient
	expires   time.Duration
}

func NewService(bucket string, presigner *s3.PresignClient, expires time.Duration) *Service {
	return &Service{bucket: bucket, presigner: presigner, expires: expires}
}

// PresignUpload returns a fresh object key and a PUT URL for it.
func (s *Service) PresignUpload(ctx context.Context, contentType string) (key, url string, err error) {
	key, err = GenerateKey(contentType)
	if err != nil {
		return "", "", err
	}

	ps, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.expires
	})
	if err != nil {
		return "", "", err
	}

	return key, ps.URL, nil
}

func (s *Service) PresignDownload(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	ps, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.expires
	})
	if err != nil {
		return "", err
	}

	return ps.URL, nil
}
