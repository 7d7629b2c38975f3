// Package media pushes user images (avatars and cover images) to
// S3-compatible object storage and returns their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophaccount/internal/filex"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/netx"
	sc "github.com/dmitrijs2005/gophaccount/internal/server/config"
	"github.com/google/uuid"
)

// ErrNoFile is returned when Upload is called without a local path.
var ErrNoFile = errors.New("media: no file to upload")

// Uploader stores the file at localPath and returns its public URL. The local
// file is removed after every attempt.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	uploadFile = netx.UploadFileToPresignedURL
)

const presignExpiry = 15 * time.Minute

// S3Uploader presigns a PUT for a fresh object key and streams the file to it.
type S3Uploader struct {
	presign    *s3.PresignClient
	httpClient *http.Client
	bucket     string
	publicBase string
	log        logging.Logger
	now        func() time.Time
}

func NewS3Uploader(ctx context.Context, cfg *sc.Config, log logging.Logger) (*S3Uploader, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	base := cfg.S3PublicURL
	if base == "" {
		base = cfg.S3BaseEndpoint
	}

	return &S3Uploader{
		presign:    newS3PresignClient(client),
		httpClient: &http.Client{Timeout: time.Minute},
		bucket:     cfg.S3Bucket,
		publicBase: strings.TrimRight(base, "/"),
		log:        log.With("module", "media"),
		now:        time.Now,
	}, nil
}

func (u *S3Uploader) objectKey(localPath string) string {
	d := u.now().UTC()
	ext := strings.ToLower(filepath.Ext(localPath))
	return fmt.Sprintf("users/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", ErrNoFile
	}
	defer func() {
		if err := filex.Remove(localPath); err != nil {
			u.log.Warn(ctx, "failed to remove temp file", "path", localPath, "error", err)
		}
	}()

	key := u.objectKey(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))

	in := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(u.presign, ctx, in, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("media: presign: %w", err)
	}

	if err := uploadFile(ctx, u.httpClient, req.URL, localPath, contentType); err != nil {
		return "", fmt.Errorf("media: put object: %w", err)
	}

	url := u.publicBase + "/" + u.bucket + "/" + key
	u.log.Debug(ctx, "file uploaded", "key", key)
	return url, nil
}
