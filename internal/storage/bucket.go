package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Bucket uploads objects to a Supabase-compatible storage bucket.
type Bucket struct {
	Http    *resty.Client
	baseURL string
	name    string
}

func NewBucket(baseURL, key, name string) *Bucket {
	baseURL = strings.TrimRight(baseURL, "/")

	client := resty.New()
	client.SetBaseURL(baseURL + "/storage/v1")
	client.SetAuthToken(key)
	client.SetHeader("apikey", key)
	client.SetTimeout(60 * time.Second)

	return &Bucket{Http: client, baseURL: baseURL, name: name}
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// Upload stores data at path, replacing any existing object.
func (b *Bucket) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res, err := b.Http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(data).
		Post(fmt.Sprintf("/object/%s/%s", url.PathEscape(b.name), escapePath(path)))
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	if res.IsError() {
		return fmt.Errorf("upload %s: status %d: %s", path, res.StatusCode(), strings.TrimSpace(res.String()))
	}
	return nil
}

// PublicURL is where a public bucket serves the object at path.
func (b *Bucket) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.baseURL, url.PathEscape(b.name), escapePath(path))
}
