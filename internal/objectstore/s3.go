package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/logging"
)

// Bucket tags standing in for Swift container metadata.
const (
	tagRead  = "read-acl"
	tagWrite = "write-acl"
	tagQuota = "quota-bytes"
)

var tagToMeta = map[string]string{
	tagRead:  MetaRead,
	tagWrite: MetaWrite,
	tagQuota: MetaQuotaBytes,
}

// s3API is the subset of *s3.Client used here.
type s3API interface {
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketTagging(ctx context.Context, in *s3.PutBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error)
	GetBucketTagging(ctx context.Context, in *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// seams for tests
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

// S3Options configure the S3-compatible backend.
type S3Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// S3 maps containers onto buckets of an S3-compatible store (MinIO, Ceph
// RGW). ACLs and quota are kept as bucket tags; the token and baseURL
// arguments are ignored since requests are signed with the static keys.
type S3 struct {
	api     s3API
	region  string
	timeout time.Duration
	logger  logging.Logger
}

// NewS3 builds an S3 backend from static credentials.
func NewS3(ctx context.Context, opts S3Options, timeout time.Duration, logger logging.Logger) (*S3, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3{api: client, region: opts.Region, timeout: timeout, logger: logger.With("module", "s3")}, nil
}

const maxBucketName = 63

// BucketName turns a container name into a valid bucket name: lowercase
// ASCII letters, digits and hyphens, at most 63 characters. Names with
// fewer than 3 usable characters are rejected.
func BucketName(container string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(container) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}

	name := strings.Trim(b.String(), "-")
	if len(name) > maxBucketName {
		name = strings.TrimRight(name[:maxBucketName], "-")
	}
	if len(name) < 3 {
		return "", fmt.Errorf("%w: no valid bucket name for container %q", common.ErrorInvalidArgument, container)
	}
	return name, nil
}

func (s *S3) CreateContainer(ctx context.Context, _, _, container string, acl ACL) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	bucket, err := BucketName(container)
	if err != nil {
		return err
	}
	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	if _, err := s.api.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("creating bucket %q: %w", bucket, classifyS3(err))
	}

	tags := map[string]string{}
	if acl.Read != "" {
		tags[tagRead] = acl.Read
	}
	if acl.Write != "" {
		tags[tagWrite] = acl.Write
	}
	if len(tags) == 0 {
		return nil
	}
	if err := s.putTags(ctx, bucket, tags); err != nil {
		return fmt.Errorf("tagging bucket %q: %w", bucket, err)
	}
	return nil
}

func (s *S3) SetQuota(ctx context.Context, _, _, container string, quotaBytes int64) error {
	if quotaBytes < 0 {
		return fmt.Errorf("%w: negative quota %d", common.ErrorInvalidArgument, quotaBytes)
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	bucket, err := BucketName(container)
	if err != nil {
		return err
	}
	tags, err := s.getTags(ctx, bucket)
	if err != nil {
		return fmt.Errorf("reading tags of %q: %w", bucket, err)
	}
	tags[tagQuota] = strconv.FormatInt(quotaBytes, 10)

	if err := s.putTags(ctx, bucket, tags); err != nil {
		return fmt.Errorf("setting quota on %q: %w", bucket, err)
	}
	return nil
}

func (s *S3) GetMetadata(ctx context.Context, _, _, container string) (Metadata, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	bucket, err := BucketName(container)
	if err != nil {
		return nil, err
	}
	tags, err := s.getTags(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("reading metadata of %q: %w", bucket, err)
	}

	md := Metadata{}
	for k, v := range tags {
		if key, ok := tagToMeta[k]; ok {
			md[key] = v
		}
	}
	return md, nil
}

func (s *S3) DeleteContainer(ctx context.Context, _, _, container string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	bucket, err := BucketName(container)
	if err != nil {
		return err
	}
	_, err = s.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	err = classifyS3(err)
	if errors.Is(err, common.ErrorNotFound) {
		s.logger.Debug(ctx, "bucket already absent", "bucket", bucket)
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting bucket %q: %w", bucket, err)
	}
	return nil
}

func (s *S3) getTags(ctx context.Context, bucket string) (map[string]string, error) {
	out, err := s.api.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
	if err != nil {
		if apiErrorCode(err) == "NoSuchTagSet" {
			return map[string]string{}, nil
		}
		return nil, classifyS3(err)
	}

	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags, nil
}

// putTags replaces the whole tag set of bucket.
func (s *S3) putTags(ctx context.Context, bucket string, tags map[string]string) error {
	set := make([]types.Tag, 0, len(tags))
	for k, v := range tags {
		set = append(set, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	_, err := s.api.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(bucket),
		Tagging: &types.Tagging{TagSet: set},
	})
	return classifyS3(err)
}

func (s *S3) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func classifyS3(err error) error {
	if err == nil {
		return nil
	}
	switch apiErrorCode(err) {
	case "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %v", common.ErrorNotFound, err)
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou", "BucketNotEmpty":
		return fmt.Errorf("%w: %v", common.ErrorConflict, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
}
