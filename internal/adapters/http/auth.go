package httpadapter

import (
	"net/http"

	"modelmarket/internal/adapters/http/apierr"
	"modelmarket/internal/session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.auth.SignUp(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, sess)
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.auth.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, sess)
}

// signOut revokes the presented token. Signing out without a valid token is a no-op.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		_ = s.auth.SignOut(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// currentSession reports the resolved session state of the caller.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) {
	p := session.NewTokenProvider(s.auth, bearerToken(r))
	defer p.Dispose()
	if err := p.Initialize(r.Context()); err != nil {
		return
	}
	apierr.WriteJSON(w, http.StatusOK, p.Current())
}
