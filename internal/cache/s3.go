package cache

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// S3 caches tiles as objects in a bucket. Requests are signed directly with
// the v2 REST scheme over plain HTTP, so no SDK is needed; locking is left to
// the surrounding tiers since object stores give no cheap primitive for it.
type S3 struct {
	bucket   string
	access   string
	secret   string
	endpoint string
	client   *http.Client
}

type S3Options struct {
	Bucket   string
	Access   string
	Secret   string
	Endpoint string // defaults to https://{bucket}.s3.amazonaws.com
}

func NewS3(opts S3Options) *S3 {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.s3.amazonaws.com", opts.Bucket)
	}
	return &S3{
		bucket:   opts.Bucket,
		access:   opts.Access,
		secret:   opts.Secret,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *S3) objectKey(key TileKey) string {
	return key.String()
}

func (c *S3) sign(req *http.Request, objectKey string) {
	date := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("Date", date)
	stringToSign := strings.Join([]string{
		req.Method,
		req.Header.Get("Content-MD5"),
		req.Header.Get("Content-Type"),
		date,
		"/" + c.bucket + "/" + objectKey,
	}, "\n")
	mac := hmac.New(sha1.New, []byte(c.secret))
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	req.Header.Set("Authorization", fmt.Sprintf("AWS %s:%s", c.access, signature))
}

func (c *S3) do(ctx context.Context, method string, key TileKey, body io.Reader, contentType string) (*http.Response, error) {
	objectKey := c.objectKey(key)
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+"/"+objectKey, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.sign(req, objectKey)
	return c.client.Do(req)
}

func (c *S3) Read(ctx context.Context, key TileKey) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, key, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrMiss
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("s3 read %s: %s", key, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *S3) Save(ctx context.Context, key TileKey, body []byte, _ time.Duration) error {
	resp, err := c.do(ctx, http.MethodPut, key, bytes.NewReader(body), "application/octet-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("s3 save %s: %s", key, resp.Status)
	}
	return nil
}

func (c *S3) Remove(ctx context.Context, key TileKey) error {
	resp, err := c.do(ctx, http.MethodDelete, key, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("s3 remove %s: %s", key, resp.Status)
	}
	return nil
}

func (c *S3) Lock(context.Context, TileKey, time.Duration) error {
	return nil
}

func (c *S3) Unlock(context.Context, TileKey) error {
	return nil
}
