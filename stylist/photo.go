package stylist

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrPhotoFetch is returned when a photo cannot be loaded.
var ErrPhotoFetch = errors.New("failed to load image")

// PhotoLoader resolves a photo URL to image bytes.
type PhotoLoader interface {
	Fetch(ctx context.Context, url string) (*Photo, error)
}

// PhotoFetcher loads photos referenced by http(s) or data URLs.
type PhotoFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewPhotoFetcher creates a PhotoFetcher. maxBytes <= 0 disables the size limit.
func NewPhotoFetcher(client *http.Client, maxBytes int64) *PhotoFetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &PhotoFetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads the photo at url.
func (f *PhotoFetcher) Fetch(ctx context.Context, url string) (*Photo, error) {
	if strings.HasPrefix(url, "data:") {
		p, err := DecodeDataURL(url)
		if err != nil {
			return nil, err
		}

		if f.maxBytes > 0 && int64(len(p.Data)) > f.maxBytes {
			return nil, fmt.Errorf("%w: photo exceeds %d bytes", ErrPhotoFetch, f.maxBytes)
		}

		return p, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPhotoFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPhotoFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrPhotoFetch, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPhotoFetch, err)
	}

	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: photo exceeds %d bytes", ErrPhotoFetch, f.maxBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}

	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", ErrPhotoFetch, mime)
	}

	return &Photo{Data: data, MIMEType: mime}, nil
}

// DecodeDataURL decodes a base64 "data:image/...;base64,..." URL. A bare
// base64 payload is accepted as JPEG.
func DecodeDataURL(s string) (*Photo, error) {
	mime := "image/jpeg"
	payload := s

	if strings.HasPrefix(s, "data:") {
		header, data, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data URL", ErrPhotoFetch)
		}

		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: data URL is not base64 encoded", ErrPhotoFetch)
		}

		if m := strings.TrimSuffix(header, ";base64"); m != "" {
			mime = m
		}

		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPhotoFetch, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty photo", ErrPhotoFetch)
	}

	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", ErrPhotoFetch, mime)
	}

	return &Photo{Data: data, MIMEType: mime}, nil
}
