package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	seqhttp "github.com/ligustah/seqdl/internal/http"
	"github.com/ligustah/seqdl/pkg/body"
)

// HTTP reads an object served over HTTP(S) with range requests. After Stat,
// every range request is pinned to the version Stat observed: by ETag when it
// is strong, by Last-Modified otherwise.
type HTTP struct {
	client *seqhttp.Client
	url    string
	pin    seqhttp.Pin
}

// NewHTTP returns a source for rawURL.
func NewHTTP(rawURL string, opts seqhttp.Options) *HTTP {
	return &HTTP{
		client: seqhttp.NewClient(opts),
		url:    rawURL,
	}
}

// Stat implements Source. It must be called before ReadRange.
func (s *HTTP) Stat(ctx context.Context) (*body.ObjectMeta, error) {
	info, err := s.client.Head(ctx, s.url)
	if err != nil {
		return nil, mapHTTPError(err)
	}
	if !info.AcceptsRanges {
		return nil, ErrRangeNotSupported
	}

	s.pin = info.Pin()
	return &body.ObjectMeta{
		Key:         objectName(s.url),
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
		ModTime:     info.LastModified,
	}, nil
}

// ReadRange implements Source.
func (s *HTTP) ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if length <= 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	resp, err := s.client.GetRange(ctx, s.url, offset, offset+length-1, s.pin)
	if err != nil {
		return nil, mapHTTPError(err)
	}
	return resp.Body, nil
}

// Close implements Source.
func (s *HTTP) Close() error {
	return nil
}

func mapHTTPError(err error) error {
	switch {
	case errors.Is(err, seqhttp.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, seqhttp.ErrRangeNotSupported):
		return fmt.Errorf("%w: %w", ErrRangeNotSupported, err)
	}
	return err
}

// objectName returns the last path element of rawURL.
func objectName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return rawURL
	}
	return path.Base(u.Path)
}
