package workspace

import (
	"bytes"
	"io/ioutil"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

// S3CacheOption is a functional option type for S3Cache.
type S3CacheOption func(c *S3Cache)

// OptS3Region sets the AWS region for the cache bucket.
func OptS3Region(region string) S3CacheOption {
	return func(c *S3Cache) {
		c.region = region
	}
}

// OptS3Prefix prepends a key prefix to every object stored in the bucket.
func OptS3Prefix(prefix string) S3CacheOption {
	return func(c *S3Cache) {
		c.prefix = strings.Trim(prefix, "/")
	}
}

// S3Cache is a CacheLayer backed by an S3 bucket, for sharing one fetch of
// the raw archives between CI workers and teammates.
type S3Cache struct {
	bucket string
	prefix string
	region string

	s3   *s3.S3
	sess *session.Session
}

// NewS3Cache returns an S3Cache on the given bucket with the options applied.
func NewS3Cache(bucket string, opts ...S3CacheOption) (*S3Cache, error) {
	c := &S3Cache{
		bucket: bucket,
		region: "us-east-1",
	}
	for _, opt := range opts {
		opt(c)
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(c.region)})
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	c.sess = sess
	c.s3 = s3.New(sess)
	return c, nil
}

func (c *S3Cache) key(k ResourceKey) string {
	return path.Join(c.prefix, k.Dataset, strings.ReplaceAll(k.DOI, "/", "-"), k.Name)
}

func (c *S3Cache) Get(key ResourceKey) ([]byte, error) {
	out, err := c.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(key)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting %s from s3", key)
	}
	defer out.Body.Close()
	content, err := ioutil.ReadAll(out.Body)
	return content, errors.Wrapf(err, "reading %s from s3", key)
}

func (c *S3Cache) Add(key ResourceKey, content []byte) error {
	_, err := c.s3.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(key)),
		Body:   bytes.NewReader(content),
	})
	return errors.Wrapf(err, "putting %s to s3", key)
}

func (c *S3Cache) Delete(key ResourceKey) error {
	_, err := c.s3.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(key)),
	})
	return errors.Wrapf(err, "deleting %s from s3", key)
}

func (c *S3Cache) Contains(key ResourceKey) bool {
	_, err := c.s3.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(key)),
	})
	return err == nil
}
