package httpadapter

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"modelmarket/internal/adapters/http/apierr"
	"modelmarket/internal/domain"
	"modelmarket/internal/services/projects"
)

// Projects

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	out, err := s.projects.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string               `json:"name"`
		Description  string               `json:"description"`
		Status       domain.ProjectStatus `json:"status"`
		BackendTasks []domain.BackendTask `json:"backend_tasks"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.projects.Create(r.Context(), userID(r), domain.Project{
		Name:         body.Name,
		Description:  body.Description,
		Status:       body.Status,
		BackendTasks: body.BackendTasks,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var patch projects.Patch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.projects.Update(r.Context(), userID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) setProjectTask(w http.ResponseWriter, r *http.Request) {
	var task domain.BackendTask
	if err := decodeJSON(r, &task); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.projects.SetTask(r.Context(), userID(r), chi.URLParam(r, "id"), task)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Datasets

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	out, err := s.datasets.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}

// uploadDataset takes a multipart form with a "file" part and an optional
// "project_id" field sent before it.
func (s *Server) uploadDataset(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		s.fail(w, r, apierr.Validation("dataset upload must be multipart/form-data"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	mr, err := r.MultipartReader()
	if err != nil {
		s.fail(w, r, apierr.Validation("invalid multipart body"))
		return
	}
	var projectID *string
	for {
		part, err := mr.NextPart()
		if err != nil {
			s.fail(w, r, apierr.Validation(`multipart body needs a "file" part`))
			return
		}
		switch part.FormName() {
		case "project_id":
			raw, _ := io.ReadAll(io.LimitReader(part, 64))
			if id := strings.TrimSpace(string(raw)); id != "" {
				projectID = &id
			}
		case "file":
			d, err := s.datasets.Upload(r.Context(), userID(r), projectID, part.FileName(), part)
			part.Close()
			if err != nil {
				s.fail(w, r, tooLargeOrPassthrough(err))
				return
			}
			apierr.WriteJSON(w, http.StatusCreated, d)
			return
		}
		part.Close()
	}
}

func tooLargeOrPassthrough(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return tooLargeOr(err, "")
	}
	return err
}

// Training jobs

func (s *Server) listTraining(w http.ResponseWriter, r *http.Request) {
	out, err := s.training.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) enqueueTraining(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID string  `json:"project_id"`
		DatasetID *string `json:"dataset_id"`
		ModelName string  `json:"model_name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	j, err := s.training.Enqueue(r.Context(), userID(r), domain.TrainingJob{
		ProjectID: body.ProjectID,
		DatasetID: body.DatasetID,
		ModelName: body.ModelName,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, j)
}

func (s *Server) getTraining(w http.ResponseWriter, r *http.Request) {
	j, err := s.training.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, j)
}

func (s *Server) cancelTraining(w http.ResponseWriter, r *http.Request) {
	if err := s.training.Cancel(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Trainer

func (s *Server) trainerClaim(w http.ResponseWriter, r *http.Request) {
	j, found, err := s.training.ClaimNext(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, j)
}

func (s *Server) trainerProgress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Progress float64 `json:"progress"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.training.Progress(r.Context(), chi.URLParam(r, "id"), body.Progress); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) trainerComplete(w http.ResponseWriter, r *http.Request) {
	if err := s.training.Complete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) trainerFail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.training.Fail(r.Context(), chi.URLParam(r, "id"), body.Reason); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Domains

func (s *Server) listDomains(w http.ResponseWriter, r *http.Request) {
	out, err := s.domains.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) addDomain(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.domains.Add(r.Context(), userID(r), body.URL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, d)
}

func (s *Server) deleteDomain(w http.ResponseWriter, r *http.Request) {
	if err := s.domains.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
