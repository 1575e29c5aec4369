package http

import (
	"net/http"

	"edufund/internal/core"
	"edufund/internal/log"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type resetRequest struct {
	Username        string `json:"username"`
	Phone           string `json:"phone"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in core.Registration
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in.Username = sanitizeInput(in.Username)
	in.Phone = sanitizeInput(in.Phone)

	u, err := s.deps.Accounts.Register(r.Context(), in)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(u).Write(w)
}

// handleLogin checks credentials only; the API keeps no session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	u, err := s.deps.Accounts.Login(r.Context(), sanitizeInput(in.Username), in.Password)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(u).Write(w)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.NewPassword {
		fail(w, r, log.OpUpdate, core.ErrPasswordMismatch)
		return
	}

	err := s.deps.Accounts.ResetPassword(r.Context(), sanitizeInput(in.Username), sanitizeInput(in.Phone), in.NewPassword)
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
