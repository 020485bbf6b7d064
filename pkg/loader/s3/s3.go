package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"

	"raven/internal/util"
	"raven/pkg/loader"
)

// readRetries bounds transient download failures per object.
const readRetries = 3

// S3CorpusLoader is a CorpusLoader implementation that discovers and reads
// corpus documents from an Amazon S3 bucket. It uses the AWS SDK v2 for Go.
//
// This loader is useful when corpus snapshots are published to object
// storage instead of the local filesystem.
type S3CorpusLoader struct {
	bucket string
	client *s3.Client

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewS3CorpusLoaderWithClient creates a new S3CorpusLoader using an existing
// s3.Client. This is useful if you want to reuse a preconfigured AWS client
// (e.g., with custom middleware or credentials).
func NewS3CorpusLoaderWithClient(bucket string, client *s3.Client) *S3CorpusLoader {
	return &S3CorpusLoader{
		bucket: bucket,
		client: client,
		cache:  make(map[string][]byte),
	}
}

// List returns the keys of the JSON objects under the given prefix, in
// listing order. A key equal to the prefix itself is included when it names
// a JSON object, mirroring the single-file case of the filesystem loader.
func (l *S3CorpusLoader) List(ctx context.Context, prefix string) ([]string, error) {
	sources := make([]string, 0)

	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			if !loader.IsJSONCandidate(key) {
				continue
			}
			sources = append(sources, key)
		}
	}

	return sources, nil
}

// Read downloads one object from the bucket. Results are cached; concurrent
// reads of the same key are collapsed into one download.
func (l *S3CorpusLoader) Read(ctx context.Context, source string) ([]byte, error) {
	l.cacheMu.RLock()
	cached, ok := l.cache[source]
	l.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err, _ := l.group.Do(source, func() (any, error) {
		raw, err := util.RetryWithContext(ctx, readRetries, func(ctx context.Context) ([]byte, error) {
			result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(l.bucket),
				Key:    aws.String(source),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to get object %q: %w", source, err)
			}
			defer result.Body.Close()

			buf := new(bytes.Buffer)
			if _, err := io.Copy(buf, result.Body); err != nil {
				return nil, fmt.Errorf("failed to read object %q: %w", source, err)
			}
			return buf.Bytes(), nil
		})
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[source] = raw
		l.cacheMu.Unlock()
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return data.([]byte), nil
}
