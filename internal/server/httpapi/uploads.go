package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
	"github.com/dmitrijs2005/weavekeeper/internal/server/services"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

const (
	maxFieldSize      = 4 << 10
	multipartOverhead = 1 << 20
)

var errNoFile = errors.New("no file provided")

type uploadResult struct {
	TransactionID string              `json:"transactionId"`
	Cost          *models.Cost        `json:"cost,omitempty"`
	Status        models.UploadStatus `json:"status"`
	PermanentURL  string              `json:"permanentUrl,omitempty"`
}

type uploadResponse struct {
	Message string       `json:"message"`
	Data    uploadResult `json:"data"`
}

type statusView struct {
	TransactionID string              `json:"transactionId"`
	Status        models.UploadStatus `json:"status"`
	PermanentURL  string              `json:"permanentUrl"`
	FileName      string              `json:"fileName"`
	FileSize      int64               `json:"fileSize"`
	UploadedAt    time.Time           `json:"uploadedAt"`
}

type fileView struct {
	TransactionID string              `json:"transactionId"`
	FileName      string              `json:"fileName"`
	FileSize      int64               `json:"fileSize"`
	FileType      string              `json:"fileType"`
	ContentType   string              `json:"contentType"`
	UploadedBy    string              `json:"uploadedBy"`
	Status        models.UploadStatus `json:"status"`
	Cost          models.Cost         `json:"cost"`
	Metadata      models.Metadata     `json:"metadata"`
	PermanentURL  string              `json:"permanentUrl"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type filesResponse struct {
	Data struct {
		Files      []fileView          `json:"files"`
		Pagination services.Pagination `json:"pagination"`
	} `json:"data"`
}

func newStatusView(u *models.Upload) statusView {
	return statusView{
		TransactionID: u.PublicID(),
		Status:        u.Status,
		PermanentURL:  u.PermanentURL,
		FileName:      u.FileName,
		FileSize:      u.FileSize,
		UploadedAt:    u.CreatedAt,
	}
}

func newFileView(u *models.Upload) fileView {
	md := u.Metadata
	if md.Tags == nil {
		md.Tags = []models.Tag{}
	}
	return fileView{
		TransactionID: u.PublicID(),
		FileName:      u.FileName,
		FileSize:      u.FileSize,
		FileType:      u.FileType,
		ContentType:   u.ContentType,
		UploadedBy:    u.UploadedBy,
		Status:        u.Status,
		Cost:          u.Cost,
		Metadata:      md,
		PermanentURL:  u.PermanentURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// readUpload streams the multipart body, keeping the "file" part and the
// optional title and description fields.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (services.SubmitInput, error) {
	var in services.SubmitInput

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return in, fmt.Errorf("%w: expected multipart/form-data: %v", common.ErrValidation, err)
	}

	found := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return in, fmt.Errorf("%w: read multipart: %w", common.ErrValidation, err)
		}

		switch part.FormName() {
		case "file":
			data, err := io.ReadAll(io.LimitReader(part, h.opts.MaxUploadSize+1))
			if err != nil {
				return in, fmt.Errorf("%w: read file: %w", common.ErrValidation, err)
			}
			if int64(len(data)) > h.opts.MaxUploadSize {
				return in, fmt.Errorf("%w: file exceeds %d bytes", common.ErrPayloadTooLarge, h.opts.MaxUploadSize)
			}
			in.Data = data
			in.FileName = part.FileName()
			in.ContentType = contentTypeOf(part.Header.Get("Content-Type"), data)
			found = true
		case "title", "description":
			v, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			if err != nil {
				return in, fmt.Errorf("%w: read field: %w", common.ErrValidation, err)
			}
			if part.FormName() == "title" {
				in.Title = string(v)
			} else {
				in.Description = string(v)
			}
		}
		_ = part.Close()
	}

	if !found {
		return in, fmt.Errorf("%w: %w", common.ErrValidation, errNoFile)
	}
	if in.FileName == "" {
		in.FileName = "file"
	}
	return in, nil
}

// contentTypeOf trusts the declared type unless it is missing or generic.
func contentTypeOf(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return declared
		}
	}
	return mimetype.Detect(data).String()
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	in, err := h.readUpload(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr), errors.Is(err, common.ErrPayloadTooLarge):
			h.writeError(r.Context(), w, fmt.Errorf("%w: %w", common.ErrPayloadTooLarge, err),
				fmt.Sprintf("File too large, limit is %d bytes", h.opts.MaxUploadSize))
		case errors.Is(err, errNoFile):
			h.writeError(r.Context(), w, err, "No file provided")
		default:
			h.writeError(r.Context(), w, err, "Invalid multipart body")
		}
		return
	}
	in.Owner = user.WalletAddress
	in.UserAgent = r.UserAgent()

	rec, err := h.uploads.Submit(r.Context(), in)
	if err != nil {
		if rec != nil {
			h.logger.Error(r.Context(), "upload submission failed", "id", rec.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, uploadResponse{
				Message: "File upload failed",
				Data:    uploadResult{TransactionID: rec.PublicID(), Status: rec.Status},
			})
			return
		}
		h.writeError(r.Context(), w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message: "File uploaded successfully",
		Data: uploadResult{
			TransactionID: rec.PublicID(),
			Cost:          &rec.Cost,
			Status:        rec.Status,
			PermanentURL:  rec.PermanentURL,
		},
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.uploads.Status(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		h.writeError(r.Context(), w, err, notFoundMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": newStatusView(rec)})
}

func (h *Handler) handleFiles(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	p, err := h.uploads.ListForWallet(r.Context(), user.WalletAddress, page, limit)
	if err != nil {
		h.writeError(r.Context(), w, err, "")
		return
	}

	var resp filesResponse
	resp.Data.Files = make([]fileView, 0, len(p.Uploads))
	for _, u := range p.Uploads {
		resp.Data.Files = append(resp.Data.Files, newFileView(u))
	}
	resp.Data.Pagination = p.Pagination
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	size, err := strconv.ParseInt(r.URL.Query().Get("size"), 10, 64)
	if err != nil || size < 0 {
		h.writeError(r.Context(), w, fmt.Errorf("%w: bad size", common.ErrValidation), "size must be a non-negative integer")
		return
	}

	cost, err := h.uploads.EstimateCost(r.Context(), size)
	if err != nil {
		h.writeError(r.Context(), w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": cost})
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	rec, err := h.uploads.Retry(r.Context(), chi.URLParam(r, "transactionId"), user.WalletAddress)
	if err != nil {
		if rec != nil {
			h.logger.Error(r.Context(), "upload retry failed", "id", rec.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"message": "Retry failed",
				"data":    newStatusView(rec),
			})
			return
		}
		h.writeError(r.Context(), w, err, retryMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Upload retried successfully",
		"data":    newStatusView(rec),
	})
}

func notFoundMessage(err error) string {
	if errors.Is(err, common.ErrorNotFound) {
		return "File not found"
	}
	return ""
}

func retryMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return "File not found"
	case errors.Is(err, common.ErrForbidden):
		return "Access denied. Not the file owner"
	case errors.Is(err, common.ErrInvalidState):
		return "Only failed uploads can be retried"
	case errors.Is(err, common.ErrContentUnavailable):
		return "Original file content is no longer available"
	}
	return ""
}

// queryInt parses an integer query parameter, falling back to def when it
// is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
