package httpadapter

import (
	"net/http"

	"modelmarket/internal/adapters/backend"
	"modelmarket/internal/adapters/http/apierr"
	"modelmarket/internal/services/wallet"
)

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	out, err := s.wallet.Balance(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if err := queryParam(r, "limit", &limit); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.wallet.Transactions(r.Context(), userID(r), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusOK, wallet.Packages)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PackageID string `json:"package_id"`
		ReturnURL string `json:"return_url"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := backend.ContextWithToken(r.Context(), bearerToken(r))
	sess, err := s.wallet.Checkout(ctx, userID(r), body.PackageID, body.ReturnURL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, sess)
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.SessionID == "" {
		s.fail(w, r, apierr.Validation("session_id is required"))
		return
	}
	ctx := backend.ContextWithToken(r.Context(), bearerToken(r))
	out, err := s.wallet.Verify(ctx, userID(r), body.SessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []backend.ChatMessage `json:"messages"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := backend.ContextWithToken(r.Context(), bearerToken(r))
	reply, err := s.chat.Reply(ctx, body.Messages)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, reply)
}

func (s *Server) getAnalytics(w http.ResponseWriter, r *http.Request) {
	rangeParam := "7d"
	if err := queryParam(r, "range", &rangeParam); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := backend.ContextWithToken(r.Context(), bearerToken(r))
	out, err := s.analytics.Analytics(ctx, rangeParam)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}
