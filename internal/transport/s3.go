package transport

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"make-upload/internal/config"
	"make-upload/internal/upload"
)

// s3Transport puts objects under a key prefix: s3://bucket/prefix.
type s3Transport struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3(p *config.Profile, u *url.URL) (upload.Transport, error) {
	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 url without a bucket", upload.ErrConfigurationInvalid)
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if region := p.Option("region", ""); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if key := p.Option("access_key_id", ""); key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			key,
			p.Option("secret_access_key", p.Password),
			p.Option("session_token", ""),
		)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := p.Option("endpoint", "")
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Transport{client: client, bucket: bucket, prefix: strings.Trim(u.Path, "/")}, nil
}

func (t *s3Transport) key(rel string) string {
	if t.prefix == "" {
		return rel
	}
	return path.Join(t.prefix, rel)
}

func (t *s3Transport) Put(ctx context.Context, it upload.Item) error {
	if it.Dir {
		// a zero byte "folder/" object stands in for the empty folder
		_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(t.bucket),
			Key:    aws.String(t.key(it.RelPath) + "/"),
			Body:   strings.NewReader(""),
		})
		return classify(err)
	}

	f, err := os.Open(it.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(t.key(it.RelPath)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	if ct := mime.TypeByExtension(path.Ext(it.RelPath)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := t.client.PutObject(ctx, in); err != nil {
		return classify(fmt.Errorf("failed to put %s: %w", *in.Key, err))
	}
	return nil
}

func (t *s3Transport) Close() error { return nil }
