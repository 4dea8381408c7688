// Package storage uploads claim evidence to the hosted image CDN.  The
// service is consumed through its plain HTTP upload/destroy endpoints; the
// Uploader interface keeps handlers independent of the concrete provider.
package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// UploadResult identifies a stored object: the durable public URL persisted
// on the claim and the provider id needed to delete the object again.
type UploadResult struct {
	URL      string
	PublicID string
}

// Uploader stores and removes image objects.
type Uploader interface {
	// Upload streams one image to the object store under the given object
	// name and returns its durable URL.
	Upload(ctx context.Context, name string, r io.Reader) (UploadResult, error)
	// Delete removes a previously uploaded object.  Used as best-effort
	// compensation when a later pipeline step fails.
	Delete(ctx context.Context, publicID string) error
}

// Client talks to a Cloudinary-compatible image API using signed uploads.
type Client struct {
	BaseURL    string // API root, default https://api.cloudinary.com/v1_1
	Cloud      string
	APIKey     string
	APISecret  string
	Folder     string
	HTTPClient *http.Client
	Now        func() time.Time
}

// NewClient builds a storage client from credentials.  Uploads get a bounded
// HTTP timeout so a stalled CDN cannot hold a request forever.
func NewClient(cloud, apiKey, apiSecret, folder string) *Client {
	return &Client{
		BaseURL:    "https://api.cloudinary.com/v1_1",
		Cloud:      cloud,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Folder:     folder,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Now:        time.Now,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends one image via multipart POST to the provider's image/upload
// endpoint.  Request parameters are signed with the API secret.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (UploadResult, error) {
	ts := strconv.FormatInt(c.Now().Unix(), 10)
	params := map[string]string{
		"folder":    c.Folder,
		"public_id": name,
		"timestamp": ts,
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return UploadResult{}, err
		}
	}
	if err := w.WriteField("api_key", c.APIKey); err != nil {
		return UploadResult{}, err
	}
	if err := w.WriteField("signature", c.sign(params)); err != nil {
		return UploadResult{}, err
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, fmt.Errorf("read upload body: %w", err)
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, err
	}

	url := fmt.Sprintf("%s/%s/image/upload", c.BaseURL, c.Cloud)
	resp, err := c.post(ctx, url, w.FormDataContentType(), &body)
	if err != nil {
		return UploadResult{}, err
	}
	if resp.SecureURL == "" {
		return UploadResult{}, fmt.Errorf("upload rejected: %s", resp.Error.Message)
	}
	return UploadResult{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

// Delete removes an uploaded object via the image/destroy endpoint.
func (c *Client) Delete(ctx context.Context, publicID string) error {
	ts := strconv.FormatInt(c.Now().Unix(), 10)
	params := map[string]string{
		"public_id": publicID,
		"timestamp": ts,
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := w.WriteField("api_key", c.APIKey); err != nil {
		return err
	}
	if err := w.WriteField("signature", c.sign(params)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/image/destroy", c.BaseURL, c.Cloud)
	_, err := c.post(ctx, url, w.FormDataContentType(), &body)
	return err
}

func (c *Client) post(ctx context.Context, url, contentType string, body io.Reader) (*uploadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("object store unreachable: %w", err)
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("object store response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("object store error %d: %s", resp.StatusCode, out.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("object store rejected request: %s", out.Error.Message)
	}
	return &out, nil
}

// sign produces the provider's request signature: SHA-1 over the
// alphabetically ordered parameter string concatenated with the API secret.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += "&"
		}
		s += k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(s + c.APISecret))
	return hex.EncodeToString(sum[:])
}
