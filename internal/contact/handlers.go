package contact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/contact-extractor/internal/export"
	"github.com/zombor/contact-extractor/internal/metrics"
)

// maxUploadSize bounds multipart uploads (high-resolution phone photos fit comfortably)
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes an error response as {"error": message}
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// contentTypeFor picks the upload's content type from its header or extension
func contentTypeFor(header string, filename string) string {
	if header != "" && header != "application/octet-stream" {
		return strings.ToLower(strings.TrimSpace(header))
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleUpload accepts an image and starts an extraction
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose an image to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := contentTypeFor(header.Header.Get("Content-Type"), header.Filename)
	snap, err := s.service.Upload(header.Filename, data, contentType)
	if errors.Is(err, ErrBusy) {
		jsonError(w, "An image is already being analyzed. Please wait.", http.StatusConflict)
		return
	}
	if errors.Is(err, ErrClosed) {
		jsonError(w, "The server is shutting down.", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		slog.Error("Error starting extraction", "filename", header.Filename, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, snap)
}

// handleState returns the session state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleReset clears the session
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Reset())
}

// handleImage returns the uploaded image
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := s.service.Image()
	if !ok {
		jsonError(w, "No image uploaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", imageContentType(contentType))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// imageContentType echoes raster image types and downgrades anything else,
// including SVG, to an opaque download
func imageContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") || mediaType == "image/svg+xml" {
		return "application/octet-stream"
	}
	return mediaType
}

// attachmentSaver saves an export by sending it as a download
type attachmentSaver struct {
	w           http.ResponseWriter
	contentType string
}

func (a attachmentSaver) Save(filename string, data []byte) (string, error) {
	a.w.Header().Set("Content-Type", a.contentType)
	a.w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if _, err := a.w.Write(data); err != nil {
		return "", fmt.Errorf("writing response: %w", err)
	}
	return filename, nil
}

// handleDownloadCSV sends the contacts as a CSV attachment
func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	saver := attachmentSaver{w: w, contentType: "text/csv; charset=utf-8"}
	_, err := export.Download(saver, s.service.Contacts(), export.DefaultFilename)
	if errors.Is(err, export.ErrNoContacts) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		slog.Error("Error sending CSV", "error", err)
		return
	}
	metrics.ExportsTotal.WithLabelValues("csv").Inc()
}

// handleDownloadXLSX sends the contacts as an XLSX attachment
func (s *Server) handleDownloadXLSX(w http.ResponseWriter, r *http.Request) {
	data, err := export.ToXLSX(s.service.Contacts())
	if errors.Is(err, export.ErrNoContacts) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		slog.Error("Error building workbook", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	saver := attachmentSaver{w: w, contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
	if _, err := saver.Save("extracted_contacts.xlsx", data); err != nil {
		slog.Error("Error sending workbook", "error", err)
		return
	}
	metrics.ExportsTotal.WithLabelValues("xlsx").Inc()
}

// handleListExtractions returns the extraction journal
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	extractions, err := s.service.ListExtractions()
	if err != nil {
		slog.Error("Error listing extractions", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, extractions)
}

// handleGetExtraction returns a single journal entry
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	extraction, err := s.service.GetExtraction(id)
	if err != nil {
		jsonError(w, "Extraction not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, extraction)
}
