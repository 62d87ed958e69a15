package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/RyanBlaney/dubsync/internal/analysis"
	"github.com/RyanBlaney/dubsync/internal/session"
	"github.com/RyanBlaney/dubsync/pkg/audio"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// multipartMemoryLimit is how much of a parsed form stays in memory before
// spilling to disk
const multipartMemoryLimit = 64 << 20

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error(err, "Failed to encode JSON response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]string{"error": message})
}

// handleRoot serves the service descriptor
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "dubsync review API",
		"version": s.version,
		"endpoints": map[string]string{
			"upload":     "POST /upload",
			"clearCache": "POST /clear_cache",
			"health":     "GET /healthz",
		},
		"supported_formats": audio.SupportedExtensions(),
	})
}

// handleHealthz serves the liveness probe
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUpload runs a full comparison batch: one reference recording against
// every usable comparison file in the form. Uploads land in a per-request
// session directory that is removed when the request finishes.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		s.respondError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	refFile, refHeader, err := r.FormFile("reference")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "no reference file provided")
		return
	}
	defer refFile.Close()

	if !audio.SupportedContainer(refHeader.Filename) {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported reference format, expected one of: %s",
				strings.Join(audio.SupportedExtensions(), ", ")))
		return
	}

	comparisons := r.MultipartForm.File["comparison[]"]
	if len(comparisons) == 0 {
		s.respondError(w, http.StatusBadRequest, "no comparison files provided")
		return
	}

	sess, err := s.sessions.Acquire()
	if err != nil {
		s.logger.Error(err, "Failed to create upload session")
		s.respondError(w, http.StatusInternalServerError, "failed to create upload session")
		return
	}
	defer sess.Release()

	refPath, err := sess.Create(refHeader.Filename, refFile)
	if err != nil {
		s.logger.Error(err, "Failed to store reference upload")
		s.respondError(w, http.StatusInternalServerError, "failed to store reference upload")
		return
	}

	candidatePaths := make([]string, 0, len(comparisons))
	for _, header := range comparisons {
		if !audio.SupportedContainer(header.Filename) {
			s.logger.Warn("Skipping unsupported comparison file", logging.Fields{
				"filename": header.Filename,
				"session":  sess.ID(),
			})
			continue
		}
		path, err := storeUpload(sess, header)
		if err != nil {
			s.logger.Error(err, "Failed to store comparison upload", logging.Fields{
				"filename": header.Filename,
			})
			s.respondError(w, http.StatusInternalServerError, "failed to store comparison upload")
			return
		}
		candidatePaths = append(candidatePaths, path)
	}

	if len(candidatePaths) == 0 {
		s.respondError(w, http.StatusBadRequest, "no usable comparison files provided")
		return
	}

	report, err := s.orchestrator.Run(r.Context(), refPath, candidatePaths)
	if err != nil {
		if errors.Is(err, analysis.ErrNoReference) || errors.Is(err, analysis.ErrNoCandidates) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error(err, "Analysis failed", logging.Fields{"session": sess.ID()})
		s.respondError(w, http.StatusInternalServerError, "analysis failed: "+err.Error())
		return
	}

	if s.recordHistory && s.history != nil {
		if err := s.history.Record(r.Context(), report); err != nil {
			s.logger.Warn("Failed to record analysis history", logging.Fields{
				"error": err.Error(),
			})
		}
	}

	s.metrics.Timing("http.upload", time.Since(start), "status:ok")
	s.respondJSON(w, http.StatusOK, report)
}

// handleClearCache wipes the fingerprint cache and any leftover session dirs
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	prints, err := s.fingerprints.ClearCache()
	if err != nil {
		s.logger.Error(err, "Failed to clear fingerprint cache")
		s.respondError(w, http.StatusInternalServerError, "failed to clear fingerprint cache")
		return
	}

	sessions, err := s.sessions.Clear()
	if err != nil {
		s.logger.Error(err, "Failed to clear session directories")
		s.respondError(w, http.StatusInternalServerError, "failed to clear session directories")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":               "Cache cleared",
		"fingerprints_cleared": prints,
		"sessions_cleared":     sessions,
	})
}

func storeUpload(sess *session.Session, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()
	return sess.Create(header.Filename, file)
}
