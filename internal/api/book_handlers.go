package api

import (
	"encoding/json/v2"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domainerrors "github.com/vieuxgrimoire/grimoire-server/internal/errors"
	"github.com/vieuxgrimoire/grimoire-server/internal/http/response"
	"github.com/vieuxgrimoire/grimoire-server/internal/service"
)

const (
	// maxUploadSize caps a whole multipart request (metadata + cover).
	maxUploadSize = 12 << 20 // 12 MiB

	// multipartMemory is how much of a parsed form stays in memory
	// before spilling to temp files.
	multipartMemory = 4 << 20 // 4 MiB
)

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.books.List(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, books, s.logger)
}

func (s *Server) handleBestRated(w http.ResponseWriter, r *http.Request) {
	books, err := s.books.TopRated(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, books, s.logger)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	input, cover, err := s.parseBookForm(w, r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	book, err := s.books.Create(r.Context(), userID, input, cover)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, book, s.logger)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	var (
		input service.BookInput
		cover service.CoverUpload
	)

	// A metadata-only update arrives as plain JSON; a cover replacement
	// arrives as the same multipart form the create endpoint takes.
	if isMultipart(r) {
		var err error
		input, cover, err = s.parseBookForm(w, r)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
	} else {
		if err := json.UnmarshalRead(r.Body, &input); err != nil {
			response.BadRequest(w, "invalid JSON body", s.logger)
			return
		}
	}

	book, err := s.books.Update(r.Context(), userID, chi.URLParam(r, "id"), input, cover)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	if err := s.books.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]string{"message": "book deleted"}, s.logger)
}

type ratingRequest struct {
	Grade int `json:"rating"`
}

func (s *Server) handleAddRating(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	var req ratingRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body", s.logger)
		return
	}

	book, err := s.books.AddRating(r.Context(), userID, chi.URLParam(r, "id"), req.Grade)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	data, err := s.covers.Get(name)
	if err != nil {
		response.NotFound(w, "image not found", s.logger)
		return
	}

	// A stored name never serves different bytes (replacement gets a
	// fresh name), so clients may cache aggressively.
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write image response", "name", name, "error", err)
	}
}

// parseBookForm extracts book metadata and the cover upload from a
// multipart form. The "book" field carries the metadata as a JSON
// string; the "image" field carries the file. A missing image is not an
// error here; create and update differ on whether one is required.
func (s *Server) parseBookForm(w http.ResponseWriter, r *http.Request) (service.BookInput, service.CoverUpload, error) {
	var input service.BookInput
	var cover service.CoverUpload

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return input, cover, domainerrors.Validation("invalid multipart form")
	}

	raw := r.FormValue("book")
	if raw == "" {
		return input, cover, domainerrors.Validation("missing book field")
	}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return input, cover, domainerrors.Validation("book field is not valid JSON")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return input, cover, nil
		}
		return input, cover, domainerrors.Validation("invalid image field")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return input, cover, domainerrors.Validation("failed to read image upload")
	}

	cover.Data = data
	cover.Mime = strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	return input, cover, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
