// Package s3 implements origin.Transport over an AWS S3 client, adapted
// from the teacher's S3 block store (pkg/blocks/store/s3): bucket/key are
// derived from a "s3://bucket/key" canonical URL, and range fetches reuse
// the same Range-header construction as the teacher's ReadBlockRange.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/sliceproxy/pkg/origin"
	"github.com/marmos91/sliceproxy/pkg/rangespec"
)

// Transport is an origin.Transport backed by an *s3.Client. Canonical URLs
// take the form "s3://bucket/key".
type Transport struct {
	client *s3.Client
}

// New wraps an existing S3 client.
func New(client *s3.Client) *Transport {
	return &Transport{client: client}
}

// NewFromConfig builds an S3 client from the default AWS config chain,
// optionally pinned to a region, mirroring the teacher's NewFromConfig.
func NewFromConfig(ctx context.Context, region string) (*Transport, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("origin/s3: load AWS config: %w", err)
	}
	return New(s3.NewFromConfig(awsCfg)), nil
}

func splitCanonicalURL(url string) (bucket, key string, err error) {
	const prefix = "s3://"
	if !strings.HasPrefix(url, prefix) {
		return "", "", fmt.Errorf("origin/s3: url %q is not an s3:// url", url)
	}
	rest := url[len(prefix):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", "", fmt.Errorf("origin/s3: url %q missing key", url)
	}
	return rest[:idx], rest[idx+1:], nil
}

// Head issues HeadObject and maps its response to FileMetadata.
func (t *Transport) Head(ctx context.Context, url string) (rangespec.FileMetadata, error) {
	bucket, key, err := splitCanonicalURL(url)
	if err != nil {
		return rangespec.FileMetadata{}, err
	}

	out, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return rangespec.FileMetadata{}, fmt.Errorf("origin/s3: head object: %w", err)
	}

	meta := rangespec.FileMetadata{AcceptsRanges: true}
	if out.ContentLength != nil {
		meta.ContentLength = uint64(*out.ContentLength)
	}
	if out.ContentType != nil {
		meta.ContentType = *out.ContentType
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	return meta, nil
}

// GetRange issues a ranged GetObject, matching the teacher's
// ReadBlockRange Range-header construction.
func (t *Transport) GetRange(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
	bucket, key, err := splitCanonicalURL(url)
	if err != nil {
		return origin.RangeResult{}, err
	}

	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end)
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return origin.RangeResult{Status: http.StatusNotFound}, nil
		}
		return origin.RangeResult{}, fmt.Errorf("origin/s3: get object range: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return origin.RangeResult{}, fmt.Errorf("origin/s3: read body: %w", err)
	}

	headers := http.Header{}
	result := origin.RangeResult{Status: http.StatusPartialContent, Body: body}
	if out.ContentRange != nil {
		headers.Set("Content-Range", *out.ContentRange)
		if crStart, crEnd, crTotal, ok := origin.ParseContentRange(*out.ContentRange); ok {
			result.ContentRangeStart = crStart
			result.ContentRangeEnd = crEnd
			result.ContentRangeTotal = crTotal
			result.ContentRangeOK = true
		}
	}
	result.Headers = headers
	return result, nil
}
