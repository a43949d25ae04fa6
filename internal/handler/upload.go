package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/clickfit/clickfit/internal/model"
	"github.com/clickfit/clickfit/internal/service"
	"github.com/clickfit/clickfit/internal/validation"
)

const (
	// multipartOverhead is headroom for boundaries and part headers on top of file bytes
	multipartOverhead = 1 << 20
	// multipartMemory is kept in memory; larger parts spill to temp files
	multipartMemory = 32 << 20
)

type UploadHandler struct {
	assetService *service.AssetService
}

func NewUploadHandler(assetService *service.AssetService) *UploadHandler {
	return &UploadHandler{assetService: assetService}
}

type uploadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	URL          string `json:"url"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
}

type fileResult struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename,omitempty"`
	OriginalName string `json:"originalname"`
	URL          string `json:"url,omitempty"`
	Path         string `json:"path,omitempty"`
	Size         int64  `json:"size,omitempty"`
	MimeType     string `json:"mimetype,omitempty"`
	Error        string `json:"error,omitempty"`
}

type batchResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Count   int          `json:"count"`
	Files   []fileResult `json:"files"`
}

type imagesResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Images  []imageSummary `json:"images"`
}

type imageSummary struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
	UploadDate string `json:"uploadDate"`
}

// Upload accepts exactly one file in the "image" field
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tooLarge := &validation.UploadError{Kind: validation.ErrPayloadTooLarge, Limit: h.assetService.MaxSize()}
	headers, ok := h.parseFiles(w, r, "image", h.assetService.MaxSize()+multipartOverhead, tooLarge.Error())
	if !ok {
		return
	}
	if len(headers) > 1 {
		writeError(w, http.StatusBadRequest, "TOO_MANY_FILES", "Only one file may be sent to /upload. Use /upload-multiple for several files.")
		return
	}

	header := headers[0]
	file, err := header.Open()
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("open multipart file: %w", err), "Error uploading file")
		return
	}
	defer closeFile(file)

	asset, err := h.assetService.Upload(r.Context(), uploadInput(file, header))
	if err != nil {
		writeServiceError(w, r, err, "Error uploading file")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:      true,
		Message:      "File uploaded successfully",
		Filename:     asset.Identifier,
		OriginalName: asset.OriginalName,
		URL:          asset.URL,
		Path:         asset.URL,
		Size:         asset.Size,
		MimeType:     asset.MimeType,
	})
}

// UploadMultiple accepts up to MaxFiles files in the "images" field. Each file
// succeeds or fails on its own; a mixed outcome is reported as 207.
func (h *UploadHandler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	maxFiles := h.assetService.MaxFiles()
	limit := int64(maxFiles)*h.assetService.MaxSize() + multipartOverhead

	// The body cap trips before parts can be counted, so it names the batch limit
	tooLarge := fmt.Sprintf("Upload is too large. Total size of all files must not exceed %s (at most %d files of %s each).",
		validation.HumanSize(limit-multipartOverhead), maxFiles, validation.HumanSize(h.assetService.MaxSize()))
	headers, ok := h.parseFiles(w, r, "images", limit, tooLarge)
	if !ok {
		return
	}
	if len(headers) > maxFiles {
		writeError(w, http.StatusBadRequest, "TOO_MANY_FILES", fmt.Sprintf("Too many files. Maximum is %d files.", maxFiles))
		return
	}

	inputs := make([]service.UploadInput, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			writeServiceError(w, r, fmt.Errorf("open multipart file: %w", err), "Error uploading files")
			return
		}
		defer closeFile(file)
		inputs = append(inputs, uploadInput(file, header))
	}

	results, err := h.assetService.UploadBatch(r.Context(), inputs)
	if err != nil {
		if errors.Is(err, service.ErrTooManyFiles) {
			writeError(w, http.StatusBadRequest, "TOO_MANY_FILES", fmt.Sprintf("Too many files. Maximum is %d files.", maxFiles))
			return
		}
		writeServiceError(w, r, err, "Error uploading files")
		return
	}

	resp := batchResponse{Files: make([]fileResult, 0, len(results))}
	firstStatus := 0
	for _, result := range results {
		if result.Err != nil {
			status, _, message := classify(result.Err, "Error uploading file")
			if firstStatus == 0 {
				firstStatus = status
				resp.Error = message
				if status >= http.StatusInternalServerError {
					slog.Error("batch file failed", "error", result.Err, "originalname", result.OriginalName)
				}
			}
			resp.Files = append(resp.Files, fileResult{OriginalName: result.OriginalName, Error: message})
			continue
		}

		resp.Count++
		resp.Files = append(resp.Files, fileResult{
			Success:      true,
			Filename:     result.Asset.Identifier,
			OriginalName: result.Asset.OriginalName,
			URL:          result.Asset.URL,
			Path:         result.Asset.URL,
			Size:         result.Asset.Size,
			MimeType:     result.Asset.MimeType,
		})
	}

	switch {
	case firstStatus == 0:
		resp.Success = true
		resp.Message = fmt.Sprintf("%d files uploaded successfully", resp.Count)
		writeJSON(w, http.StatusOK, resp)
	case resp.Count > 0:
		resp.Message = fmt.Sprintf("%d of %d files uploaded successfully", resp.Count, len(results))
		writeJSON(w, http.StatusMultiStatus, resp)
	default:
		writeJSON(w, firstStatus, resp)
	}
}

func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	err := h.assetService.Delete(r.Context(), filename)
	if err != nil {
		writeServiceError(w, r, err, "Error deleting file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "File deleted successfully",
		"filename": filename,
	})
}

func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assetService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Error retrieving images")
		return
	}

	images := make([]imageSummary, 0, len(assets))
	for _, asset := range assets {
		images = append(images, summarize(asset))
	}

	writeJSON(w, http.StatusOK, imagesResponse{
		Success: true,
		Count:   len(images),
		Images:  images,
	})
}

// parseFiles bounds the body, parses the multipart form and returns the parts
// of field. It writes the error response itself and reports false on failure.
// tooLarge is the message sent when the body exceeds limit.
func (h *UploadHandler) parseFiles(w http.ResponseWriter, r *http.Request, field string, limit int64, tooLarge string) ([]*multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := r.ParseMultipartForm(multipartMemory)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", tooLarge)
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeServiceError(w, r, service.ErrNoFileProvided, "")
		default:
			writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form")
		}
		return nil, false
	}
	// Spilled temp files are removed by net/http once the handler returns

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		writeServiceError(w, r, service.ErrNoFileProvided, "")
		return nil, false
	}
	return headers, true
}

func uploadInput(file multipart.File, header *multipart.FileHeader) service.UploadInput {
	return service.UploadInput{
		Body:         file,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
	}
}

func summarize(asset *model.Asset) imageSummary {
	return imageSummary{
		Filename:   asset.Identifier,
		Path:       asset.URL,
		URL:        asset.URL,
		Size:       asset.Size,
		UploadDate: asset.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func closeFile(file multipart.File) {
	err := file.Close()
	if err != nil {
		slog.Error("failed to close file", "error", err)
	}
}
