package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"modelmarket/internal/adapters/http/apierr"
	"modelmarket/internal/domain"
)

type modelUpload struct {
	Name  string                  `json:"name"`
	Size  int64                   `json:"size"`
	Level domain.CompressionLevel `json:"level,omitempty"`
}

// readModelUpload accepts either a multipart form with a "file" part (and an
// optional "level" field) or JSON metadata. With spool set the file bytes are
// kept in the spool directory so the pipeline can forward them.
func (s *Server) readModelUpload(w http.ResponseWriter, r *http.Request, spool bool) (domain.FileRef, domain.CompressionLevel, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body modelUpload
		if err := decodeJSON(r, &body); err != nil {
			return domain.FileRef{}, "", err
		}
		return domain.FileRef{Name: body.Name, Size: body.Size}, body.Level, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	mr, err := r.MultipartReader()
	if err != nil {
		return domain.FileRef{}, "", apierr.Validation("invalid multipart body")
	}
	var (
		file  domain.FileRef
		level domain.CompressionLevel
		found bool
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.discard(file)
			return domain.FileRef{}, "", tooLargeOr(err, "invalid multipart body")
		}
		switch part.FormName() {
		case "level":
			raw, _ := io.ReadAll(io.LimitReader(part, 64))
			level = domain.CompressionLevel(strings.TrimSpace(string(raw)))
		case "file":
			if found {
				break
			}
			found = true
			file.Name = part.FileName()
			if spool && s.spool != nil {
				obj, err := s.spool.Put(r.Context(), "uploads", file.Name, part)
				if err != nil {
					return domain.FileRef{}, "", tooLargeOr(err, "upload failed")
				}
				file.Size, file.Path = obj.Size, obj.Path
			} else {
				n, err := io.Copy(io.Discard, part)
				if err != nil {
					return domain.FileRef{}, "", tooLargeOr(err, "upload failed")
				}
				file.Size = n
			}
		}
		part.Close()
	}
	if !found {
		return domain.FileRef{}, "", apierr.Validation(`multipart body needs a "file" part`)
	}
	return file, level, nil
}

func tooLargeOr(err error, msg string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apierr.Validation(fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
	}
	return apierr.Validation(msg)
}

func (s *Server) discard(file domain.FileRef) {
	if file.Path != "" && s.spool != nil {
		_ = s.spool.Remove(file.Path)
	}
}

type waitParams struct {
	wait    bool
	timeout int
}

func (s *Server) waitParams(r *http.Request) (waitParams, error) {
	var p waitParams
	if err := queryParam(r, "wait", &p.wait); err != nil {
		return p, err
	}
	if err := queryParam(r, "timeout", &p.timeout); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Server) createVerification(w http.ResponseWriter, r *http.Request) {
	wp, err := s.waitParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file, _, err := s.readModelUpload(w, r, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	run, err := s.runs.StartVerification(r.Context(), userID(r), file, wp.wait)
	if err != nil {
		s.discard(file)
		s.fail(w, r, err)
		return
	}
	if !wp.wait {
		apierr.WriteJSON(w, http.StatusAccepted, run)
		return
	}
	s.processInline(r.Context(), run.ID, wp.timeout)
	run, err = s.runs.Verification(r.Context(), userID(r), run.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, run)
}

func (s *Server) getVerification(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Verification(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, run)
}

func (s *Server) createCompression(w http.ResponseWriter, r *http.Request) {
	wp, err := s.waitParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file, level, err := s.readModelUpload(w, r, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	run, err := s.runs.StartCompression(r.Context(), userID(r), file, level, wp.wait)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !wp.wait {
		apierr.WriteJSON(w, http.StatusAccepted, run)
		return
	}
	s.processInline(r.Context(), run.ID, wp.timeout)
	run, err = s.runs.Compression(r.Context(), userID(r), run.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, run)
}

func (s *Server) getCompression(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Compression(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, run)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.Cancel(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resetRun cancels the run if it is still going and forgets it.
func (s *Server) resetRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.Reset(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runLogs(w http.ResponseWriter, r *http.Request) {
	var offset int
	if err := queryParam(r, "offset", &offset); err != nil {
		s.fail(w, r, err)
		return
	}
	if offset < 0 {
		s.fail(w, r, apierr.Validation("offset must not be negative"))
		return
	}
	entries, err := s.runs.Logs(r.Context(), userID(r), chi.URLParam(r, "id"), offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"logs":        entries,
		"next_offset": offset + len(entries),
	})
}

func (s *Server) downloadReport(w http.ResponseWriter, r *http.Request) {
	filename, body, err := s.runs.Report(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
