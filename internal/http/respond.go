package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"splid/internal/core"
	"splid/internal/log"
)

const maxBodyBytes = 1 << 20

// Codes produced by the HTTP layer itself.
const (
	codeBadRequest       core.Code = "BAD_REQUEST"
	codeRateLimited      core.Code = "RATE_LIMITED"
	codeMethodNotAllowed core.Code = "METHOD_NOT_ALLOWED"
)

var (
	errRouteNotFound    = core.New(core.CodeNotFound, "no such route")
	errMethodNotAllowed = core.New(codeMethodNotAllowed, "method not allowed")
	errRateLimited      = core.New(codeRateLimited, "rate limit exceeded, retry later")
	errDraftNotFound    = core.New(core.CodeNotFound, "draft not found or expired")
)

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     core.Code         `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func badRequest(format string, args ...any) error {
	return core.New(codeBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps an error code to its HTTP status.
func statusFor(code core.Code) int {
	switch code {
	case core.CodeInvalidOperation:
		return http.StatusConflict
	case core.CodeParticipantExists, core.CodeParticipantNotFound,
		core.CodeItemOutOfRange, core.CodeUnknownCurrency, core.CodeInvalidRecord:
		return http.StatusUnprocessableEntity
	case core.CodeNotFound:
		return http.StatusNotFound
	case codeBadRequest:
		return http.StatusBadRequest
	case codeRateLimited:
		return http.StatusTooManyRequests
	case codeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v before writing the header. An encoding failure is
// sent as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if v == nil {
		w.WriteHeader(status)
		return
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error":{"code":%q,"message":"internal error"}}`+"\n", core.CodeUnknown)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeError renders err as a JSON error body. Unknown errors are logged and
// reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	detail := errorDetail{Code: core.GetCode(err), Message: err.Error()}
	var de *core.Error
	if errors.As(err, &de) {
		detail.Message = de.Message
		detail.Metadata = de.Metadata
	}

	status := statusFor(detail.Code)
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
			"Request failed", err, log.ComponentHTTP, r.Method,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, ""))
		detail = errorDetail{Code: core.CodeUnknown, Message: "internal error"}
	}
	writeJSON(w, status, errorResponse{Error: detail})
}

// decodeJSON reads a JSON object into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("request body too large")
		}
		return badRequest("invalid JSON body: %s", strings.TrimPrefix(err.Error(), "json: "))
	}
	if dec.More() {
		return badRequest("invalid JSON body: trailing data")
	}
	return nil
}
