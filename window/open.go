/*
Copyright © 2018 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package window

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqdata"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
	"gocloud.dev/gcp"
)

// Opener opens the flat files that a Buffer reads. Missing files
// should cause an error wrapping aqdata.ErrNotFound.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// OpenerFunc is an Opener implemented by a function.
type OpenerFunc func(ctx context.Context, name string) (io.ReadCloser, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return f(ctx, name)
}

// FileOpener opens local files, files at http:// or https:// URLs, and
// blobs at URLs beginning with file://, gs:// or s3://. Failed remote
// requests are retried with exponential backoff, except when the file
// does not exist.
type FileOpener struct {
	// MaxRetries is the maximum number of times a remote request
	// is retried.
	MaxRetries uint64

	// Client is used for http requests. If it is nil,
	// http.DefaultClient is used.
	Client *http.Client

	Log logrus.FieldLogger
}

// Open implements Opener.
func (o *FileOpener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://"):
		return o.openHTTP(ctx, name)
	case IsBlob(name):
		return o.openBlob(ctx, name)
	}
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(aqdata.ErrNotFound, "window: %s", name)
	}
	return f, err
}

// retry calls op until it succeeds, the maximum number of retries
// is reached or ctx is done.
func (o *FileOpener) retry(ctx context.Context, name string, op func() error) error {
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return backoff.RetryNotify(
		op,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), o.MaxRetries), ctx),
		func(err error, d time.Duration) {
			log.WithField("file", name).WithError(err).Warnf("window: retrying in %v", d)
		},
	)
}

func (o *FileOpener) openHTTP(ctx context.Context, name string) (io.ReadCloser, error) {
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequest(http.MethodGet, name, nil)
	if err != nil {
		return nil, fmt.Errorf("window: %v", err)
	}
	req = req.WithContext(ctx)
	var body io.ReadCloser
	var final error
	err = o.retry(ctx, name, func() error {
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			body = resp.Body
			return nil
		case resp.StatusCode >= 500:
			resp.Body.Close()
			return fmt.Errorf("window: %s: %s", name, resp.Status)
		case resp.StatusCode == http.StatusNotFound:
			final = errors.Wrapf(aqdata.ErrNotFound, "window: %s", name)
		default:
			final = fmt.Errorf("window: %s: %s", name, resp.Status)
		}
		resp.Body.Close()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if final != nil {
		return nil, final
	}
	return body, nil
}

// blobReader closes its bucket when it is closed.
type blobReader struct {
	*blob.Reader
	bucket *blob.Bucket
}

func (r blobReader) Close() error {
	err := r.Reader.Close()
	if err2 := r.bucket.Close(); err == nil {
		err = err2
	}
	return err
}

func (o *FileOpener) openBlob(ctx context.Context, name string) (io.ReadCloser, error) {
	u, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("window: %v", err)
	}
	bucket, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return nil, err
	}
	key := strings.TrimPrefix(u.Path, "/")
	var r *blob.Reader
	var final error
	err = o.retry(ctx, name, func() error {
		var err error
		r, err = bucket.NewReader(ctx, key, nil)
		if gcerrors.Code(err) == gcerrors.NotFound {
			final = errors.Wrapf(aqdata.ErrNotFound, "window: %s", name)
			return nil
		}
		return err
	})
	if err == nil {
		err = final
	}
	if err != nil {
		bucket.Close()
		return nil, err
	}
	return blobReader{Reader: r, bucket: bucket}, nil
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// The currently accepted storage providers are "file" for the local filesystem,
// "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("window.OpenBucket: %v", err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.OpenBucket(u.Hostname(), nil)
	case "gs":
		return gsBucket(ctx, u.Hostname())
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("window.OpenBucket: invalid provider %s", u.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s := session.Must(session.NewSession(c))
	return s3blob.OpenBucket(ctx, s, name, nil)
}
