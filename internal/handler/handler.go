package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/internal/codec"
	"github.com/harliandi/sizefit/internal/converter"
	"github.com/harliandi/sizefit/internal/file"
	"github.com/harliandi/sizefit/internal/middleware"
	"github.com/harliandi/sizefit/internal/sizing"
)

// maxMemory is the in-memory share of multipart parsing; the rest spills to disk.
const maxMemory = 32 << 20

// errBadRequest marks request parameter problems.
var errBadRequest = errors.New("bad request")

// Submitter runs a conversion. *converter.WorkerPool implements it.
type Submitter interface {
	Submit(ctx context.Context, req converter.Request) (*sizing.Outcome, error)
}

// Handler handles HTTP requests for image resizing
type Handler struct {
	pool        Submitter
	maxUploadMB int
}

// New creates a new Handler
func New(pool Submitter, maxUploadMB int) *Handler {
	return &Handler{
		pool:        pool,
		maxUploadMB: maxUploadMB,
	}
}

// Resize handles the /resize endpoint. The image arrives as the multipart
// field "file"; query parameters select a byte target or dimensions.
func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := int64(h.maxUploadMB) << 20
	// Multipart framing needs a little room over the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
		case errors.Is(err, http.ErrNotMultipart):
			writeError(w, http.StatusBadRequest, "Content-Type must be multipart/form-data")
		default:
			writeError(w, http.StatusBadRequest, "Malformed multipart body")
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer upload.Close()

	if header.Size > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Data, err = io.ReadAll(upload)
	if err != nil {
		log.Error().Err(err).Str("request_id", middleware.RequestID(r.Context())).Msg("reading upload failed")
		writeError(w, http.StatusBadRequest, "Could not read upload")
		return
	}

	out, err := h.pool.Submit(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.sendImage(w, header.Filename, out)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)

	ev := log.Warn()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		ev = log.Error()
	}
	ev.Err(err).Int("status", status).Str("request_id", middleware.RequestID(r.Context())).Msg("resize failed")

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, msg)
}

// statusFor maps a conversion error to an HTTP status and client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, sizing.ErrInvalidTarget),
		errors.Is(err, converter.ErrEmptyInput),
		errors.Is(err, converter.ErrNoOperation),
		errors.Is(err, codec.ErrInvalidImageDimensions):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, codec.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "Unsupported image format"
	case errors.Is(err, codec.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, converter.ErrPoolBusy):
		return http.StatusServiceUnavailable, "Service busy, please try again"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled"
	}
	return http.StatusInternalServerError, "Resize failed"
}

// parseRequest reads the query into a converter request without image data.
func parseRequest(r *http.Request) (converter.Request, error) {
	q := r.URL.Query()
	var req converter.Request

	target, err := parseTarget(q.Get("target_bytes"), q.Get("target_kb"), q.Get("target"))
	if err != nil {
		return req, err
	}
	req.TargetBytes = target

	if s := q.Get("tolerance"); s != "" {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return req, fmt.Errorf("%w: tolerance must be a number", errBadRequest)
		}
		if req.Tolerance, err = sizing.ToleranceFromPercent(p); err != nil {
			return req, err
		}
	}

	if s := q.Get("format"); s != "" {
		req.Format = codec.ParseFormat(s)
		if !req.Format.SupportsQuality() {
			return req, fmt.Errorf("%w: format must be jpeg or webp", errBadRequest)
		}
	}

	ws, hs := q.Get("width"), q.Get("height")
	if ws != "" || hs != "" {
		if req.Width, err = parseDimension("width", ws); err != nil {
			return req, err
		}
		if req.Height, err = parseDimension("height", hs); err != nil {
			return req, err
		}
	}

	switch {
	case req.TargetBytes > 0 && req.Width > 0:
		return req, fmt.Errorf("%w: give either a target size or dimensions, not both", errBadRequest)
	case req.TargetBytes == 0 && req.Width == 0:
		return req, fmt.Errorf("%w: a target size or width and height is required", errBadRequest)
	}
	return req, nil
}

func parseTarget(bytesStr, kbStr, human string) (int, error) {
	given := 0
	for _, s := range []string{bytesStr, kbStr, human} {
		if s != "" {
			given++
		}
	}
	if given > 1 {
		return 0, fmt.Errorf("%w: use only one of target_bytes, target_kb and target", errBadRequest)
	}

	switch {
	case bytesStr != "":
		n, err := strconv.Atoi(bytesStr)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: target_bytes must be a positive integer", sizing.ErrInvalidTarget)
		}
		return n, nil
	case kbStr != "":
		return sizing.ParseSize(kbStr + "KB")
	case human != "":
		return sizing.ParseSize(human)
	}
	return 0, nil
}

func parseDimension(name, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, name)
	}
	if n > codec.MaxImageWidth {
		return 0, fmt.Errorf("%w: %s exceeds %d", errBadRequest, name, codec.MaxImageWidth)
	}
	return n, nil
}

func (h *Handler) sendImage(w http.ResponseWriter, filename string, out *sizing.Outcome) {
	hdr := w.Header()
	hdr.Set("Content-Type", out.Format.MIME())
	hdr.Set("Content-Length", strconv.Itoa(len(out.Data)))
	hdr.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.ResizedName(safeName(filename), out.Format)))
	hdr.Set("X-Final-Quality", strconv.Itoa(out.Quality))
	hdr.Set("X-Final-Width", strconv.Itoa(out.Width))
	hdr.Set("X-Final-Height", strconv.Itoa(out.Height))
	hdr.Set("X-Within-Tolerance", strconv.FormatBool(out.WithinTolerance))
	hdr.Set("X-Format-Substituted", strconv.FormatBool(out.Substitution.Substituted()))
	hdr.Set("X-Trial-Encodes", strconv.Itoa(out.Trials))
	w.WriteHeader(http.StatusOK)
	w.Write(out.Data)
}

// safeName strips directories and quoting characters from a client file name.
func safeName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return "image"
	}
	return name
}

// Health handles the /health endpoint for readiness/liveness probes
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
