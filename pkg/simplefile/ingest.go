package simplefile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tendant/simple-file/pkg/simplefile/objectkey"
)

func (s *service) Create(ctx context.Context, req CreateRequest) (Record, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, ErrInvalidSource
	}

	d, err := s.provider.Driver()
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.tempDir, "simplefile-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("Failed to remove temp file", "path", tmpPath, "error", err)
		}
	}()

	name, description := req.Name, req.Description
	limit := s.MaxUploadSize()

	if u, ok := remoteURL(req.Source); ok {
		s.logger.Debug("Fetching remote file", "url", u.String())
		if err := s.fetch(ctx, u, tmp, limit); err != nil {
			return nil, s.reject(ctx, req.Source, err)
		}
		if name == "" {
			segments := strings.Split(u.Path, "/")
			name = segments[len(segments)-1]
		}
		if description == "" {
			description = "Downloaded from " + req.Source
		}
	} else {
		if err := copyLocal(req.Source, tmp, limit); err != nil {
			return nil, s.reject(ctx, req.Source, err)
		}
		if name == "" {
			name = filepath.Base(req.Source)
		}
		if description == "" {
			description = "Created from local file " + req.Source
		}
	}

	if err := tmp.Close(); err != nil {
		return nil, s.reject(ctx, req.Source, fmt.Errorf("failed to write temp file: %w", err))
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return nil, s.reject(ctx, req.Source, err)
	}
	if info.Size() > limit {
		return nil, s.reject(ctx, req.Source, &SizeLimitError{Size: info.Size(), Limit: limit, LimitMB: s.maxUploadMB})
	}

	mt, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		return nil, s.reject(ctx, req.Source, fmt.Errorf("failed to detect mime type: %w", err))
	}
	mime := BaseMime(mt.String())

	if s.normalizeName && objectkey.Ext(name) == "" {
		name += mt.Extension()
	}

	h, err := d.Create(ctx, tmpPath, mime, CreateParams{
		Name:         name,
		Description:  description,
		ProposedPath: req.ProposedPath,
		KeyGenerator: s.keys,
		Options:      req.Options,
	})
	if err != nil {
		s.logger.Error("Driver failed to create file", "driver", s.provider.Name(), "source", req.Source, "error", err)
		return nil, err
	}

	record := Wrap(h, s.links)
	if err := s.eventSink.FileCreated(ctx, record); err != nil {
		s.logger.Warn("Event sink failed", "event", "file_created", "uid", record.Base().UID(), "error", err)
	}
	return record, nil
}

// BaseMime strips parameters such as charset from a media type
func BaseMime(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	return strings.TrimSpace(base)
}

// remoteURL reports whether source is a well-formed http(s) URL
func remoteURL(source string) (*url.URL, bool) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	return u, true
}

// fetch copies at most limit+1 bytes of the remote body into dst, which is
// enough for the caller to detect an oversized payload.
func (s *service) fetch(ctx context.Context, u *url.URL, dst io.Writer, limit int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	if _, err := io.Copy(dst, io.LimitReader(resp.Body, limit+1)); err != nil {
		return fmt.Errorf("failed to read %s: %w", u.String(), err)
	}
	return nil
}

func copyLocal(path string, dst io.Writer, limit int64) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, limit+1)); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
