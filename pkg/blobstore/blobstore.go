// Package blobstore reads source documents from object storage. The indexing
// pipeline treats a bucket as a shallow folder tree: the first path segment
// of every key is the folder (mapped to a knowledge domain downstream) and
// the rest is the document name.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store lists and fetches documents from a blob container.
type Store interface {
	// ListFolderStructure maps each top-level folder to the object keys
	// beneath it. Keys without a folder are grouped under the empty string.
	ListFolderStructure(ctx context.Context) (map[string][]string, error)

	// GetContent downloads one object.
	GetContent(ctx context.Context, key string) ([]byte, error)
}

// S3Config configures the S3-backed store.
type S3Config struct {
	Region string `json:"region"`
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() *S3Config {
	return &S3Config{
		Region: "us-east-1",
	}
}

// S3Store implements Store on an S3 bucket.
type S3Store struct {
	config *S3Config
	client *s3.Client
	logger *slog.Logger
}

// NewS3Store builds a store using the ambient AWS credential chain.
func NewS3Store(ctx context.Context, config *S3Config, logger *slog.Logger) (*S3Store, error) {
	if config == nil {
		config = DefaultS3Config()
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(config.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Store{
		config: config,
		client: s3.NewFromConfig(cfg),
		logger: logger.With("component", "blobstore", "bucket", config.Bucket),
	}, nil
}

// ListFolderStructure pages through the bucket and groups object keys by
// their first path segment under the configured prefix.
func (s *S3Store) ListFolderStructure(ctx context.Context) (map[string][]string, error) {
	prefix := s.config.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	folders := map[string][]string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %q: %w", s.config.Bucket, err)
		}
		for _, object := range page.Contents {
			if object.Key == nil {
				continue
			}
			key := *object.Key
			if strings.HasSuffix(key, "/") {
				// Folder placeholder objects carry no content.
				continue
			}
			folder, _ := SplitFolder(strings.TrimPrefix(key, prefix))
			folders[folder] = append(folders[folder], key)
		}
	}

	for folder := range folders {
		sort.Strings(folders[folder])
	}
	s.logger.Debug("listed folder structure", "folders", len(folders))
	return folders, nil
}

// GetContent downloads one object from the bucket.
func (s *S3Store) GetContent(ctx context.Context, key string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	defer output.Body.Close()

	content, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", key, err)
	}
	return content, nil
}

// SplitFolder splits a relative object key into its first path segment and
// the remaining document name.
func SplitFolder(key string) (folder, name string) {
	key = strings.TrimPrefix(key, "/")
	if idx := strings.Index(key, "/"); idx >= 0 {
		return key[:idx], key[idx+1:]
	}
	return "", key
}

// BaseName returns the document name of a key without its folder path.
func BaseName(key string) string {
	return path.Base(key)
}
