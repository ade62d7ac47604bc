package visual

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/stylemesh/artifact"
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/stylist"
)

// ImagePathPrefix is the URL path under which stored images are served.
const ImagePathPrefix = "/api/fashion/images/"

// ErrImageNotFound is returned for unknown image URLs.
var ErrImageNotFound = errors.New("image not found")

// Images stores photos and generated images as session artifacts and
// resolves their URLs.
type Images struct {
	store   core.ArtifactStore
	fetcher stylist.PhotoLoader
}

// NewImages creates an Images. fetcher loads URLs that do not point at the store.
func NewImages(store core.ArtifactStore, fetcher stylist.PhotoLoader) *Images {
	if fetcher == nil {
		fetcher = stylist.NewPhotoFetcher(nil, 0)
	}

	return &Images{store: store, fetcher: fetcher}
}

// URL returns the public path of an image.
func URL(sessionID, imageID string) string {
	return ImagePathPrefix + url.PathEscape(sessionID) + "/" + url.PathEscape(imageID)
}

// ParseURL extracts session and image id from a URL produced by URL. Absolute
// URLs are accepted.
func ParseURL(raw string) (sessionID, imageID string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}

	rest, found := strings.CutPrefix(u.EscapedPath(), ImagePathPrefix)
	if !found {
		return "", "", false
	}

	s, i, found := strings.Cut(rest, "/")
	if !found || strings.Contains(i, "/") {
		return "", "", false
	}

	if sessionID, err = url.PathUnescape(s); err != nil {
		return "", "", false
	}
	if imageID, err = url.PathUnescape(i); err != nil {
		return "", "", false
	}

	return sessionID, imageID, sessionID != "" && imageID != ""
}

// Put stores an image under a generated id starting with name and returns its URL.
func (im *Images) Put(sessionID, name string, data []byte) (string, error) {
	id := name + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + extension(http.DetectContentType(data))

	if err := im.store.Save(sessionID, id, data); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	return URL(sessionID, id), nil
}

// Open returns the bytes and MIME type of a stored image.
func (im *Images) Open(sessionID, imageID string) ([]byte, string, error) {
	data, err := im.store.Get(sessionID, imageID)
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, "", ErrImageNotFound
	}
	if err != nil {
		return nil, "", err
	}

	return data, http.DetectContentType(data), nil
}

// Delete removes the image behind a URL produced by Put. Unknown images
// are ignored.
func (im *Images) Delete(raw string) error {
	sessionID, imageID, ok := ParseURL(raw)
	if !ok {
		return fmt.Errorf("%w: %s", ErrImageNotFound, raw)
	}

	if err := im.store.Delete(sessionID, imageID); err != nil && !errors.Is(err, artifact.ErrNotFound) {
		return err
	}

	return nil
}

// DeleteSession removes every image of a session.
func (im *Images) DeleteSession(sessionID string) error {
	return im.store.DeleteSession(sessionID)
}

// Fetch implements stylist.PhotoLoader. Image URLs are read from the store,
// everything else is delegated to the fallback fetcher.
func (im *Images) Fetch(ctx context.Context, raw string) (*stylist.Photo, error) {
	sessionID, imageID, ok := ParseURL(raw)
	if !ok {
		return im.fetcher.Fetch(ctx, raw)
	}

	data, mime, err := im.Open(sessionID, imageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stylist.ErrPhotoFetch, err)
	}

	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", stylist.ErrPhotoFetch, mime)
	}

	return &stylist.Photo{Data: data, MIMEType: mime}, nil
}

func extension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
