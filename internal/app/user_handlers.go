package app

import (
	"errors"
	"net/http"

	"newsagg/internal/contextx"
	"newsagg/internal/users"
)

type signupRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Name        string   `json:"name"`
	Preferences []string `json:"preferences"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string     `json:"message"`
	User    users.User `json:"user"`
	Token   string     `json:"token"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	u, err := s.users.Register(req.Email, req.Password, req.Name, req.Preferences)
	var ve *users.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	case errors.Is(err, users.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "User already exists with this email")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	s.respondWithToken(w, r, "User registered successfully", u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields. Required: email, password")
		return
	}
	u, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.respondWithToken(w, r, "Login successful", u)
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, msg string, u users.User) {
	token, err := s.issuer.Issue(u.ID, u.Email)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Message: msg, User: u, Token: token})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(userID(r))
	if err != nil {
		s.userError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.users.Preferences(userID(r))
	if err != nil {
		s.userError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preferences []string `json:"preferences"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Preferences must be an array of strings")
		return
	}
	prefs, err := s.users.SetPreferences(userID(r), req.Preferences)
	if err != nil {
		s.userError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Preferences updated successfully",
		"preferences": prefs,
	})
}

// userError maps directory errors to responses.
func (s *Server) userError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *users.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, users.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		s.internalError(w, r, err)
	}
}

// userID is the authenticated caller. Only valid behind the auth middleware.
func userID(r *http.Request) string {
	p, _ := contextx.PrincipalFromContext(r.Context())
	return p.UserID
}
