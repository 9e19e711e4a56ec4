package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadDirectory uploads every regular file directly under dir to bucket,
// under the given key prefix. Credentials are resolved the standard AWS SDK
// way (environment, shared config, or instance role); nothing
// crawler-specific is required.
func UploadDirectory(ctx context.Context, dir, bucket, keyPrefix string) error {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("output: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("output: read result dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		localPath := filepath.Join(dir, entry.Name())
		key := strings.TrimSuffix(keyPrefix, "/") + "/" + entry.Name()

		f, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("output: open %s: %w", localPath, err)
		}

		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("output: upload %s to s3://%s/%s: %w", localPath, bucket, key, err)
		}
	}
	return nil
}
