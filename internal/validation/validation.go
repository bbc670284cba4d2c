package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// Helper wraps a validator instance. validator caches struct metadata, so
// callers share one Helper instead of building their own.
type Helper struct {
	validator *validator.Validate
}

var shared = NewHelper()

func NewHelper() *Helper {
	return &Helper{validator: validator.New()}
}

// Default returns the process-wide Helper.
func Default() *Helper {
	return shared
}

// ValidateStruct checks s against its validate tags. Failures come back as
// validator.ValidationErrors.
func (h *Helper) ValidateStruct(s any) error {
	return h.validator.Struct(s)
}

// FieldErrors maps each failing field to a short description. It returns nil
// when err carries no field errors.
func FieldErrors(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			details[fe.Field()] = fmt.Sprintf("failed '%s=%s' with %v", fe.Tag(), fe.Param(), fe.Value())
		} else {
			details[fe.Field()] = fmt.Sprintf("failed '%s' with %v", fe.Tag(), fe.Value())
		}
	}
	return details
}

// Summary renders FieldErrors on one line, ordered by field name, for logs
// and error messages.
func Summary(err error) string {
	details := FieldErrors(err)
	if details == nil {
		return err.Error()
	}

	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+details[field])
	}
	return strings.Join(parts, "; ")
}

// SendErrorResponse writes message as a JSON error. Field errors found in
// validationErr are listed under details.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Details: FieldErrors(validationErr),
	})
}
