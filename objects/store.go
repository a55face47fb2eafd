package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// LinkExpiry is the lifetime of a pre-signed retrieval link.
const LinkExpiry = 120 * time.Second

type FileExistsError struct {
	File string
}

func (e *FileExistsError) Error() string {
	return fmt.Sprintf("Download cancelled: file '%s' exists.", e.File)
}

func (e *FileExistsError) Is(err error) bool {
	return err == ErrFileExists
}

var ErrFileExists = errors.New("file exists")

type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Page is one page of a bucket listing. Next is the marker from which to continue the listing
// and is only set if the page is truncated.
type Page struct {
	Objects   []Object
	Truncated bool
	MaxKeys   int64
	Next      string
}

type Store struct {
	client s3iface.S3API
}

func NewStore(client s3iface.S3API) *Store {
	return &Store{
		client: client,
	}
}

// Put uploads the contents of r to bucket/key. A nil metadata map omits the metadata from the
// request altogether.
func (s *Store) Put(ctx context.Context, bucket, key string, r io.Reader, metadata map[string]string) (string, error) {
	object := s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	}

	if metadata != nil {
		object.Metadata = aws.StringMap(metadata)
	}

	result, err := s3manager.NewUploaderWithClient(s.client).UploadWithContext(ctx, &object)
	if err != nil {
		return "", err
	}

	return result.Location, nil
}

// PutFile uploads a local file to bucket/key and returns the object location and the number of
// bytes uploaded.
func (s *Store) PutFile(ctx context.Context, bucket, key, file string, metadata map[string]string) (string, int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", 0, err
	}

	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	} else if info.IsDir() {
		return "", 0, fmt.Errorf("%s is a directory", file)
	}

	location, err := s.Put(ctx, bucket, key, f, metadata)
	if err != nil {
		return "", 0, err
	}

	return location, info.Size(), nil
}

// Get downloads bucket/key to a new local file. The download is refused without any remote
// request if the file already exists. A partially written file is removed if the download fails.
func (s *Store) Get(ctx context.Context, bucket, key, file string) (int64, error) {
	if _, err := os.Stat(file); err == nil {
		return 0, &FileExistsError{File: file}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return 0, err
		}
	}

	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0640)
	if errors.Is(err, os.ErrExist) {
		return 0, &FileExistsError{File: file}
	} else if err != nil {
		return 0, err
	}

	object := s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	N, err := s3manager.NewDownloaderWithClient(s.client).DownloadWithContext(ctx, f, &object)
	if err != nil {
		f.Close()
		os.Remove(file)
		return 0, err
	}

	if err := f.Close(); err != nil {
		return N, err
	}

	return N, nil
}

// List fetches a single page of the bucket listing, starting after marker.
func (s *Store) List(ctx context.Context, bucket, marker string) (*Page, error) {
	request := s3.ListObjectsInput{
		Bucket: aws.String(bucket),
	}

	if marker != "" {
		request.Marker = aws.String(marker)
	}

	response, err := s.client.ListObjectsWithContext(ctx, &request)
	if err != nil {
		return nil, err
	}

	page := Page{
		Objects:   []Object{},
		Truncated: aws.BoolValue(response.IsTruncated),
		MaxKeys:   aws.Int64Value(response.MaxKeys),
	}

	for _, object := range response.Contents {
		page.Objects = append(page.Objects, Object{
			Key:          aws.StringValue(object.Key),
			Size:         aws.Int64Value(object.Size),
			LastModified: aws.TimeValue(object.LastModified),
		})
	}

	if page.Truncated {
		page.Next = aws.StringValue(response.NextMarker)
		if page.Next == "" && len(page.Objects) > 0 {
			page.Next = page.Objects[len(page.Objects)-1].Key
		}
	}

	return &page, nil
}

// Metadata returns the user metadata attached to bucket/key.
func (s *Store) Metadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	request := s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	response, err := s.client.HeadObjectWithContext(ctx, &request)
	if err != nil {
		return nil, err
	}

	return aws.StringValueMap(response.Metadata), nil
}

// Presign returns a pre-signed GET URL for bucket/key that expires after LinkExpiry. The URL is
// signed locally and the object is not required to exist.
func (s *Store) Presign(ctx context.Context, bucket, key string) (string, error) {
	rq, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})

	rq.SetContext(ctx)

	return rq.Presign(LinkExpiry)
}
