package surface

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type loginRequest struct {
	Login string `json:"login"`
}

type codeRequest struct {
	Session string `json:"session"`
	Code    string `json:"code"`
}

type passwordChar struct {
	Position int    `json:"position"`
	Value    string `json:"value"`
}

type passwordRequest struct {
	Session string         `json:"session"`
	Chars   []passwordChar `json:"chars"`
}

// IndexHandler handles GET /
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", map[string]interface{}{
		"Title":         "Sign in",
		"RenderDelayMs": s.renderDelay.Milliseconds(),
	})
}

// CodePageHandler handles GET /code/{session}
func (s *Server) CodePageHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(mux.Vars(r)["session"])
	if !ok || sess.stage != stageCode {
		http.NotFound(w, r)
		return
	}
	s.render(w, "code.html", map[string]interface{}{
		"Code":          sess.code,
		"RenderDelayMs": s.renderDelay.Milliseconds(),
	})
}

// LoginHandler handles POST /api/login
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Login != s.account.Login {
		s.logger.Debug().Str("login", req.Login).Msg("Unknown account")
		WriteError(w, http.StatusUnauthorized, "Unknown account")
		return
	}

	sess, err := s.sessions.create()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create login session")
		WriteError(w, http.StatusInternalServerError, "Failed to start login")
		return
	}

	s.logger.Debug().Str("session", sess.id).Msg("Login session started")
	WriteJSON(w, http.StatusOK, map[string]string{"session": sess.id})
}

// CodeHandler handles POST /api/code
func (s *Server) CodeHandler(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, ok := s.sessions.get(req.Session)
	if !ok {
		WriteError(w, http.StatusNotFound, "Unknown session")
		return
	}
	if req.Code != sess.code || !s.sessions.advance(sess.id, stageCode, stagePassword) {
		WriteError(w, http.StatusUnauthorized, "Invalid code")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// MaskedHandler handles GET /api/masked/{session}
func (s *Server) MaskedHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(mux.Vars(r)["session"])
	if !ok {
		WriteError(w, http.StatusNotFound, "Unknown session")
		return
	}
	if sess.stage != stagePassword {
		WriteError(w, http.StatusConflict, "Code not verified")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"fields": s.account.Fields()})
}

// PasswordHandler handles POST /api/password
func (s *Server) PasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, ok := s.sessions.get(req.Session)
	if !ok {
		WriteError(w, http.StatusNotFound, "Unknown session")
		return
	}

	chars := make(map[int]string, len(req.Chars))
	for _, c := range req.Chars {
		chars[c.Position] = c.Value
	}
	if sess.stage != stagePassword || !s.account.Verify(chars) {
		WriteError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	if !s.sessions.advance(sess.id, stagePassword, stageDone) {
		WriteError(w, http.StatusConflict, "Login already completed")
		return
	}

	s.logger.Info().Str("session", sess.id).Msg("Login completed")
	WriteJSON(w, http.StatusOK, map[string]string{"welcome": s.account.Welcome()})
}

// StatusHandler handles GET /status
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.count(),
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data map[string]interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}
