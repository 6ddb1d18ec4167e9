package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/sony/gobreaker"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const (
	uploadTimeout = 30 * time.Second
	deleteTimeout = 15 * time.Second
)

// UploadAPI is the part of the Cloudinary upload API the store calls.
type UploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStore keeps report photos in Cloudinary. The object key "<folder>/<name>.<ext>" maps to
// folder and public id.
type CloudinaryStore struct {
	api UploadAPI
	cb  *gobreaker.CircuitBreaker
}

var _ ports.ObjectStore = (*CloudinaryStore)(nil)

// NewCloudinaryStoreFromURL builds the store from a CLOUDINARY_URL.
func NewCloudinaryStoreFromURL(cloudinaryURL string, cb *gobreaker.CircuitBreaker) (*CloudinaryStore, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("CLOUDINARY_URL not set")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return NewCloudinaryStore(&cld.Upload, cb), nil
}

func NewCloudinaryStore(api UploadAPI, cb *gobreaker.CircuitBreaker) *CloudinaryStore {
	return &CloudinaryStore{api: api, cb: cb}
}

func (s *CloudinaryStore) Upload(ctx context.Context, key string, file domain.Attachment) (string, error) {
	if len(file.Data) == 0 {
		return "", domain.NewUploadError(file.Filename, fmt.Errorf("empty file"))
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	folder, publicID := splitKey(key)
	overwrite := false

	res, err := s.cb.Execute(func() (interface{}, error) {
		result, err := s.api.Upload(ctx, bytes.NewReader(file.Data), uploader.UploadParams{
			Folder:       folder,
			PublicID:     publicID,
			ResourceType: "image",
			Overwrite:    &overwrite,
		})
		if err != nil {
			return nil, err
		}
		if result.Error.Message != "" {
			return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
		}
		return result, nil
	})
	if err != nil {
		return "", domain.NewUploadError(file.Filename, err)
	}
	return res.(*uploader.UploadResult).SecureURL, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	publicID := extractPublicID(url)
	if publicID == "" {
		return fmt.Errorf("failed to extract public ID from URL: %s", url)
	}

	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: "image"})
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from cloudinary: %w", err)
	}
	return nil
}

// splitKey turns "waste-reports/1700000000000-bin.jpg" into ("waste-reports", "1700000000000-bin").
func splitKey(key string) (string, string) {
	dir, file := path.Split(strings.Trim(key, "/"))
	return strings.TrimSuffix(dir, "/"), strings.TrimSuffix(file, path.Ext(file))
}

// extractPublicID recovers "folder/name" from a delivery URL such as
// https://res.cloudinary.com/<cloud>/image/upload/v123/folder/name.jpg.
func extractPublicID(url string) string {
	parts := strings.SplitN(url, "/upload/", 2)
	if len(parts) < 2 {
		return ""
	}

	segments := strings.Split(parts[1], "/")
	if len(segments) > 1 && isVersion(segments[0]) {
		segments = segments[1:]
	}
	publicID := strings.Join(segments, "/")
	if dot := strings.LastIndex(publicID, "."); dot > strings.LastIndex(publicID, "/") {
		publicID = publicID[:dot]
	}
	return publicID
}

func isVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
