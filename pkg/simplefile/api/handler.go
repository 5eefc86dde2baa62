// Package api serves file records over HTTP with chi.
package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-file/pkg/simplefile"
)

const (
	// maxRecordsPerRequest bounds the uids accepted by GetMultiple
	maxRecordsPerRequest = 50

	// multipartOverhead is allowed on top of the upload limit for form fields and boundaries
	multipartOverhead = 1 << 20

	multipartMemory = 32 << 20
)

// Handler serves the file endpoints
type Handler struct {
	service       simplefile.Service
	logger        *slog.Logger
	auth          *jwtauth.JWTAuth
	remoteSources bool
	tempDir       string
	maxPixels     int
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithAuth requires a valid JWT for uploads
func WithAuth(ja *jwtauth.JWTAuth) HandlerOption {
	return func(h *Handler) {
		h.auth = ja
	}
}

// WithRemoteSources lets uploads name an http(s) URL in the "url" form field
// instead of sending a file. The server then fetches the URL itself.
func WithRemoteSources(enabled bool) HandlerOption {
	return func(h *Handler) {
		h.remoteSources = enabled
	}
}

// WithTempDir sets where uploaded files are staged
func WithTempDir(dir string) HandlerOption {
	return func(h *Handler) {
		h.tempDir = dir
	}
}

// WithMaxResizePixels bounds the width*height of images resized on download
func WithMaxResizePixels(n int) HandlerOption {
	return func(h *Handler) {
		h.maxPixels = n
	}
}

// NewHandler creates a handler over service
func NewHandler(service simplefile.Service, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, logger: slog.Default(), maxPixels: DefaultMaxResizePixels}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for the file endpoints. Mount it at /file so the
// download route matches simplefile.DefaultDownloadPattern.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(jwtauth.Verifier(h.auth))
			r.Use(jwtauth.Authenticator)
		}
		r.Post("/", h.Create)
	})
	r.Get("/", h.GetMultiple)
	r.Get("/{uid}", h.Get)
	r.Get("/download/{uid}", h.Download)
	return r
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// Create ingests an uploaded file, or a remote URL when enabled
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxUploadSize()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			limit := h.service.MaxUploadSize()
			h.writeError(w, r, &simplefile.SizeLimitError{Limit: limit, LimitMB: float64(limit) / (1 << 20)})
			return
		}
		h.logger.Error("Failed to parse upload", "error", err)
		h.writeStatus(w, r, http.StatusBadRequest, "expected a multipart/form-data upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := simplefile.CreateRequest{
		Name:         r.FormValue("name"),
		Description:  r.FormValue("description"),
		ProposedPath: r.FormValue("path"),
	}

	if source := r.FormValue("url"); source != "" {
		if !h.remoteSources {
			h.writeStatus(w, r, http.StatusBadRequest, "remote sources are disabled")
			return
		}
		req.Source = source
	} else {
		dir, err := os.MkdirTemp(h.tempDir, "simplefile-upload-*")
		if err != nil {
			h.logger.Error("Failed to create upload directory", "error", err)
			h.writeError(w, r, err)
			return
		}
		defer os.RemoveAll(dir)

		local, filename, err := h.stageUpload(r, dir)
		if err != nil {
			h.logger.Error("Failed to read upload", "error", err)
			h.writeStatus(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.Source = local
		if req.Name == "" {
			req.Name = filename
		}
		if req.Description == "" {
			req.Description = "Uploaded " + filename
		}
	}

	record, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := record.AsJSONable()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("Create", "uid", record.Base().UID())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, view)
}

// stageUpload writes the "file" form part into dir and returns its path and
// the client's base file name
func (h *Handler) stageUpload(r *http.Request, dir string) (string, string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", fmt.Errorf("missing file: %w", err)
	}
	defer file.Close()

	filename := filepath.Base(filepath.Clean("/" + header.Filename))
	if filename == "/" || filename == "." {
		filename = "upload"
	}

	local := filepath.Join(dir, filename)
	out, err := os.Create(local)
	if err != nil {
		return "", "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", "", err
	}
	if err := out.Close(); err != nil {
		return "", "", err
	}
	return local, filename, nil
}

// Get returns one record
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	record, err := h.service.Get(r.Context(), uid, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := record.AsJSONable()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// GetMultiple returns the records of the uid query parameters that exist, in
// request order
func (h *Handler) GetMultiple(w http.ResponseWriter, r *http.Request) {
	uids := r.URL.Query()["uid"]
	if len(uids) > maxRecordsPerRequest {
		h.writeStatus(w, r, http.StatusBadRequest, "too many uids requested")
		return
	}

	records, err := h.service.GetMultiple(r.Context(), uids, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]map[string]any, 0, len(records))
	for _, record := range records {
		view, err := record.AsJSONable()
		if err != nil {
			h.logger.Warn("Failed to serialize record", "uid", record.Base().UID(), "error", err)
			continue
		}
		views = append(views, view)
	}
	render.JSON(w, r, views)
}

// Download streams the stored bytes as an attachment. PNG, JPEG and GIF
// images are resized when width or height is given; other formats are
// streamed unchanged.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	width, err := dimension(r, "width")
	if err != nil {
		h.writeStatus(w, r, http.StatusBadRequest, err.Error())
		return
	}
	height, err := dimension(r, "height")
	if err != nil {
		h.writeStatus(w, r, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.service.Get(r.Context(), uid, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f := record.Base()

	rc, err := f.Open(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name()}))

	if _, ok := simplefile.AsImage(record); ok && (width > 0 || height > 0) && simplefile.Resizable(f.Mime()) {
		data, err := io.ReadAll(rc)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		out, contentType, err := resizeImage(data, width, height, h.maxPixels)
		switch {
		case errors.Is(err, errUnsupportedFormat):
			out, contentType = data, f.Mime()
		case errors.Is(err, errTooManyPixels):
			h.writeStatus(w, r, http.StatusRequestEntityTooLarge, err.Error())
			return
		case err != nil:
			h.logger.Error("Failed to resize image", "uid", uid, "error", err)
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(out)))
		w.Write(out)
		return
	}

	w.Header().Set("Content-Type", f.Mime())
	if n := f.Length(); n > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("Failed to stream file", "uid", uid, "error", err)
	}
}

func dimension(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

// writeError maps service errors onto HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var sizeErr *simplefile.SizeLimitError
	var fetchErr *simplefile.FetchError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, simplefile.ErrInvalidFileUIDFormat), errors.Is(err, simplefile.ErrInvalidSource):
		status = http.StatusBadRequest
	case errors.Is(err, simplefile.ErrFileNotFound):
		status = http.StatusNotFound
	case errors.As(err, &sizeErr):
		status = http.StatusRequestEntityTooLarge
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		h.writeStatus(w, r, status, http.StatusText(status))
		return
	}
	h.writeStatus(w, r, status, err.Error())
}
