package s3test

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// Client returns an S3 client and a fresh bucket that is emptied and
// deleted when t finishes. Without PATHTREE_TEST_S3_ENDPOINT the client
// talks to an in-process fake; with it, credentials and region come
// from the usual AWS environment variables.
func Client(t testing.TB) (*s3.S3, string) {
	t.Helper()
	config := &aws.Config{S3ForcePathStyle: aws.Bool(true)}
	if endpoint := os.Getenv("PATHTREE_TEST_S3_ENDPOINT"); endpoint != "" {
		config.Endpoint = aws.String(endpoint)
		if os.Getenv("AWS_REGION") == "" {
			config.Region = aws.String("us-east-1")
		}
	} else {
		ts := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
		t.Cleanup(ts.Close)
		config.Credentials = credentials.NewStaticCredentials("TEST-ACCESSKEYID", "TEST-SECRETACCESSKEY", "")
		config.Endpoint = aws.String(ts.URL)
		config.Region = aws.String("ca-west-1")
		config.DisableSSL = aws.Bool(true)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		t.Fatalf("s3 session: %v", err)
	}
	client := s3.New(sess)

	bucket, err := randBucketName()
	if err != nil {
		t.Fatalf("bucket name: %v", err)
	}
	if _, err := client.CreateBucket(&s3.CreateBucketInput{Bucket: &bucket}); err != nil {
		t.Fatalf("create bucket %s: %v", bucket, err)
	}
	t.Cleanup(func() {
		if err := emptyBucket(client, bucket); err != nil {
			t.Logf("empty bucket %s: %v", bucket, err)
		}
		client.DeleteBucket(&s3.DeleteBucketInput{Bucket: &bucket})
	})
	return client, bucket
}

func randBucketName() (string, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(math.MaxUint32))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("pathtree-%s", i), nil
}

// emptyBucket deletes each listed page of objects as it arrives; a
// page holds at most 1000 keys, the DeleteObjects limit.
func emptyBucket(client *s3.S3, bucket string) error {
	var deleteErr error
	err := client.ListObjectsV2Pages(&s3.ListObjectsV2Input{Bucket: &bucket},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			if len(page.Contents) == 0 {
				return true
			}
			objects := make([]*s3.ObjectIdentifier, 0, len(page.Contents))
			for _, object := range page.Contents {
				objects = append(objects, &s3.ObjectIdentifier{Key: object.Key})
			}
			_, deleteErr = client.DeleteObjects(&s3.DeleteObjectsInput{
				Bucket: &bucket,
				Delete: &s3.Delete{Objects: objects},
			})
			return deleteErr == nil
		})
	if err != nil {
		return err
	}
	return deleteErr
}
