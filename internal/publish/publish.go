// Package publish uploads a build output directory to S3.
//
// Every regular file below the directory is stored under Prefix joined
// with its slash-separated relative path. Content types come from the file
// extension, falling back to content sniffing.
//
//	client, err := publish.NewS3(ctx, "eu-west-1")
//	up := publish.New(client, "my-bucket", "site/")
//	report, err := up.Upload(ctx, cfg.OutputPath())
package publish

import (
	"context"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// ObjectPutter is the part of the S3 client the uploader needs.
// *s3.Client implements it.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NoCacheFiles are uploaded with caching disabled because their names do
// not change between builds.
var NoCacheFiles = []string{"index.html", "tsbuild-manifest.json"}

// Object describes one uploaded file.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// Report summarizes an upload.
type Report struct {
	Bucket  string
	Objects []Object
	Bytes   int64
}

// Uploader uploads directories to one bucket.
type Uploader struct {
	client ObjectPutter
	bucket string
	prefix string

	// OnUpload is called after each object is stored.
	OnUpload func(obj Object)

	logger *slog.Logger
}

// New creates an uploader for bucket. Keys are prefixed with prefix.
func New(client ObjectPutter, bucket, prefix string) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: slog.Default().With("component", "publish"),
	}
}

// NewS3 creates an S3 client from the default AWS credential chain. An
// empty region uses the chain's region.
func NewS3(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New("E180").
			WithDetail("Could not load AWS configuration").
			WithSuggestion("Check AWS_PROFILE, AWS_REGION and your credentials").
			Wrap(err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Upload stores every regular file below dir. It stops at the first
// failed upload.
func (u *Uploader) Upload(ctx context.Context, dir string) (*Report, error) {
	if u.bucket == "" {
		return nil, errors.New("E181").
			WithSuggestion("Pass --bucket or set publish.bucket in tsbuild.json")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, errors.New("E180").
			WithDetail(dir + " is not a directory").
			WithSuggestion("Run 'tsbuild build' first")
	}

	report := &Report{Bucket: u.bucket}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		obj, err := u.put(ctx, p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		report.Objects = append(report.Objects, obj)
		report.Bytes += obj.Size
		if u.OnUpload != nil {
			u.OnUpload(obj)
		}
		return nil
	})
	if err != nil {
		var te *errors.TSBuildError
		if errors.As(err, &te) {
			return report, te
		}
		return report, errors.New("E180").Wrap(err)
	}
	return report, nil
}

func (u *Uploader) put(ctx context.Context, file, rel string) (Object, error) {
	f, err := os.Open(file)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Object{}, err
	}

	obj := Object{
		Key:         u.Key(rel),
		ContentType: ContentType(file),
		Size:        info.Size(),
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(obj.Key),
		Body:          f,
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(obj.ContentType),
	}
	if noCache(rel) {
		input.CacheControl = aws.String("no-cache")
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return Object{}, errors.New("E180").
			WithDetail("Upload of s3://" + u.bucket + "/" + obj.Key + " failed").
			Wrap(err)
	}
	u.logger.Debug("uploaded", "key", obj.Key, "type", obj.ContentType, "bytes", obj.Size)
	return obj, nil
}

// Key returns the object key for a slash-separated relative path.
func (u *Uploader) Key(rel string) string {
	if u.prefix == "" {
		return rel
	}
	return path.Join(u.prefix, rel)
}

// ContentType returns the MIME type for file. The extension is used when
// known, otherwise the content is sniffed.
func ContentType(file string) string {
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		return ct
	}
	mt, err := mimetype.DetectFile(file)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

func noCache(rel string) bool {
	base := path.Base(rel)
	for _, name := range NoCacheFiles {
		if base == name {
			return true
		}
	}
	return false
}
