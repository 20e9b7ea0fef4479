package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

// maxJSONBody caps decoded request bodies.
const maxJSONBody = 2 << 20

var (
	vldOnce sync.Once
	vld     *validator.Validate

	requestIDPattern = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		_ = vld.RegisterValidation("doctype", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseDocumentType(fl.Field().String())
			return err == nil
		})
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// decodeJSON decodes and validates the request body into dst. On failure it
// writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !acceptsJSON(r) {
		writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
			Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]string{"accept": r.Header.Get("Accept")},
		}})
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]int64{"max_bytes": mbe.Limit},
			}})
			return false
		}
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
		return false
	}
	return true
}

// validationDetails maps each failing field to the tag it failed.
func validationDetails(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

func acceptsJSON(r *http.Request) bool {
	a := r.Header.Get("Accept")
	return a == "" || strings.Contains(a, "*/*") || strings.Contains(a, "application/json")
}

// SanitizeRequestID strips characters outside [a-zA-Z0-9_.-] and caps the
// length so client supplied ids are safe to log and store.
func SanitizeRequestID(id string) string {
	id = requestIDPattern.ReplaceAllString(strings.TrimSpace(id), "")
	if len(id) > 64 {
		id = id[:64]
	}
	return id
}
