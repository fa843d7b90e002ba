package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
)

// Putter is the S3 call the store makes.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes summaries as JSON objects under prefix/yyyy/mm/dd/<ulid>.json.
type S3Store struct {
	client Putter
	bucket string
	prefix string
}

func NewS3Store(client Putter, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}
}

func (s *S3Store) Store(ctx context.Context, summary Summary) (string, error) {
	body, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("%w: encode summary: %w", ErrContentStoreFailure, err)
	}

	ts := summary.Premium.BlockTimestamp.UTC()
	key := path.Join(s.prefix, ts.Format("2006/01/02"), ulid.Make().String()+".json")

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"tx-hash":       summary.Premium.TransactionHash,
			"policy-number": summary.Premium.PolicyNumber,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object: %w", ErrContentStoreFailure, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
