package catalog

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Resolver turns a catalog entry into the reference a notifier embeds.
type Resolver interface {
	Resolve(ctx context.Context, e Entry) (string, error)
}

// URLResolver joins a public base URL with the entry image path. An entry
// without an image falls back to captchas/<id>.png.
type URLResolver struct {
	base *url.URL
}

func NewURLResolver(baseURL string) (*URLResolver, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("catalog base url must be absolute")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &URLResolver{base: u}, nil
}

func (r *URLResolver) Resolve(_ context.Context, e Entry) (string, error) {
	ref, err := url.Parse(imagePath(e))
	if err != nil {
		return "", err
	}
	return r.base.ResolveReference(ref).String(), nil
}

// S3Presigner is the subset of *s3.PresignClient used by S3Resolver.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Resolver signs short-lived GET URLs for captcha images kept in a
// private bucket.
type S3Resolver struct {
	presigner S3Presigner
	bucket    string
	prefix    string
	expires   time.Duration
}

func NewS3Resolver(client *s3.Client, bucket, prefix string, expires time.Duration) *S3Resolver {
	return newS3Resolver(s3.NewPresignClient(client), bucket, prefix, expires)
}

func newS3Resolver(presigner S3Presigner, bucket, prefix string, expires time.Duration) *S3Resolver {
	if expires <= 0 {
		expires = time.Hour
	}
	return &S3Resolver{
		presigner: presigner,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		expires:   expires,
	}
}

func (r *S3Resolver) Resolve(ctx context.Context, e Entry) (string, error) {
	key := imagePath(e)
	if r.prefix != "" {
		key = r.prefix + "/" + key
	}

	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func imagePath(e Entry) string {
	if p := strings.TrimLeft(e.Image, "/"); p != "" {
		return p
	}
	return "captchas/" + strconv.Itoa(e.ID) + ".png"
}
