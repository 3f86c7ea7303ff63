package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rpggio/casereview/internal/domain/review"
)

// Response is the JSON API envelope.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error is the JSON API error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type phaseRequest struct {
	Phase string `json:"phase"`
}

type stepRequest struct {
	Direction string `json:"direction"`
}

type diagnosisRequest struct {
	Text string `json:"text"`
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	r = s.withSession(w, r)
	s.apiAct(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.Login(ctx, sess, req.Username, req.Password)
	})
}

func (s *Server) apiLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := TokenFromContext(r.Context())
	res, err := s.transition(r, s.engine.Logout)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	endSession(w, s.sessions, s.cookieName, token)
	writeResult(w, res)
}

func (s *Server) apiView(w http.ResponseWriter, r *http.Request) {
	_, sess := s.session(r)
	view, err := s.engine.View(r.Context(), sess)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeResult(w, view)
}

func (s *Server) apiOpenCase(w http.ResponseWriter, r *http.Request) {
	caseID := pathParam(r, "case")
	s.apiAct(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.OpenCase(ctx, sess, caseID)
	})
}

func (s *Server) apiSelectPhase(w http.ResponseWriter, r *http.Request) {
	var req phaseRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.apiAct(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.SelectPhase(ctx, sess, req.Phase)
	})
}

func (s *Server) apiStepSlice(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	dir, err := review.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.apiAct(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.StepSlice(ctx, sess, dir)
	})
}

func (s *Server) apiSaveDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req diagnosisRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.apiAct(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.SaveDiagnosis(ctx, sess, req.Text)
	})
}

func (s *Server) apiBack(w http.ResponseWriter, r *http.Request) {
	s.apiAct(w, r, s.engine.BackToSelection)
}

func (s *Server) apiOpenAdmin(w http.ResponseWriter, r *http.Request) {
	s.apiAct(w, r, s.engine.OpenAdmin)
}

func (s *Server) apiCloseAdmin(w http.ResponseWriter, r *http.Request) {
	s.apiAct(w, r, s.engine.CloseAdmin)
}

func (s *Server) apiAdminLog(w http.ResponseWriter, r *http.Request) {
	_, sess := s.session(r)
	events, err := s.engine.AdminLog(r.Context(), sess, pathParam(r, "key"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeResult(w, events)
}

func (s *Server) apiAct(w http.ResponseWriter, r *http.Request, fn func(context.Context, review.Session) (review.Result, error)) {
	res, err := s.transition(r, fn)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logError(r.Context(), "transition failed", err)
		}
		writeError(w, status, err)
		return
	}
	writeResult(w, res)
}

func decodeJSON(body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// writeResult writes a success response.
func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, Response{Result: result})
}

// writeError writes an error response with the given status.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = userMessage(err)
	}
	writeJSON(w, status, Response{Error: &Error{Code: status, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
