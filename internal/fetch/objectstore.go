package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// bucketKey splits scheme://bucket/key/parts into bucket and key.
func bucketKey(u *url.URL) (string, string, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%s url must look like %s://<bucket>/<key>, got %q", u.Scheme, u.Scheme, u.String())
	}
	return bucket, key, nil
}

// fetchFile reads file:///abs/path or file://relative/path.
func fetchFile(_ context.Context, u *url.URL) ([]byte, error) {
	p := u.Path
	if u.Host != "" && u.Host != "localhost" {
		p = u.Host + u.Path
	}
	if p == "" {
		p = u.Opaque
	}
	return os.ReadFile(p)
}

// S3Source reads s3://bucket/key using the default AWS credential chain.
// Endpoint, when set, targets an S3-compatible store with path-style URLs.
type S3Source struct {
	Endpoint string
}

func (s *S3Source) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return nil, err
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// fetchGCS reads gs://bucket/object with application default credentials.
func fetchGCS(ctx context.Context, u *url.URL) ([]byte, error) {
	bucket, object, err := bucketKey(u)
	if err != nil {
		return nil, err
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs open object: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// AzureSource reads az://container/blob using a storage connection string.
type AzureSource struct {
	ConnectionString string
}

func (s *AzureSource) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	container, blob, err := bucketKey(u)
	if err != nil {
		return nil, err
	}
	if s.ConnectionString == "" {
		return nil, fmt.Errorf("az urls require AZURE_STORAGE_CONNECTION_STRING")
	}
	client, err := azblob.NewClientFromConnectionString(s.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}

	resp, err := client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("azure download: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
