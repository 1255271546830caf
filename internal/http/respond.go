package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/skybtp/crewboard/internal/repository"
	"github.com/skybtp/crewboard/internal/service/auth"
	"github.com/skybtp/crewboard/internal/service/team"
	"github.com/skybtp/crewboard/pkg/crypto"
)

// Machine readable error codes carried in the "code" field.
const (
	codeInvalidInput    = "invalid_input"
	codeRosterFull      = "roster_full"
	codeAlreadyAssigned = "already_assigned"
	codeNotFound        = "not_found"
	codeConflict        = "conflict"
	codeUnauthorized    = "unauthorized"
	codeForbidden       = "forbidden"
	codeRateLimited     = "rate_limited"
	codeMethod          = "method_not_allowed"
	codeInternal        = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message with its machine code.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// classify maps service and repository errors onto status, code and message.
func classify(err error) (int, string, string) {
	var capErr *team.CapacityError
	switch {
	case errors.As(err, &capErr):
		return http.StatusBadRequest, codeRosterFull, capErr.Error()
	case errors.Is(err, team.ErrRosterFull), errors.Is(err, repository.ErrRosterFull):
		return http.StatusBadRequest, codeRosterFull, "team leader roster is full"
	case errors.Is(err, team.ErrAlreadyAssigned), errors.Is(err, repository.ErrAlreadyAssigned):
		return http.StatusConflict, codeAlreadyAssigned, team.ErrAlreadyAssigned.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, codeNotFound, "not found"
	case errors.Is(err, team.ErrCrossCompany):
		return http.StatusForbidden, codeForbidden, err.Error()
	case errors.Is(err, auth.ErrNoCompany):
		return http.StatusForbidden, codeForbidden, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, codeUnauthorized, err.Error()
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, codeConflict, err.Error()
	case errors.Is(err, team.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidArgument),
		errors.Is(err, crypto.ErrWeakPassword):
		return http.StatusBadRequest, codeInvalidInput, err.Error()
	}
	return http.StatusInternalServerError, codeInternal, "internal error"
}

// decodeJSON reads the body into payload and runs struct validation.
func decodeJSON(req *http.Request, validate *validator.Validate, payload any) error {
	if err := json.NewDecoder(req.Body).Decode(payload); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("validation error: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}
