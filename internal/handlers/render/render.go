package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	// Report on 'TagName' json tag instead of struct name
	// Look at documentation of 'RegisterTagNameFunc' for more details
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		// skip if tag key says it should be ignored
		if name == "-" {
			return ""
		}
		return name
	})
}

// Uniform response envelope, success is derived from the status code
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// JSON sends data wrapped in the response envelope with the given status
func JSON(w http.ResponseWriter, code int, data any, message string) {
	writeJSON(w, code, Response{
		StatusCode: code,
		Data:       data,
		Message:    message,
		Success:    code < http.StatusBadRequest,
	})
}

// Error sends the envelope without data
func Error(w http.ResponseWriter, code int, message string) {
	JSON(w, code, nil, message)
}

// DecodeError reports a request body that could not be parsed
func DecodeError(w http.ResponseWriter, err error) {
	var message string

	// Try to provide more specific error message based on error type
	switch err := err.(type) {
	case *json.UnmarshalTypeError:
		message = fmt.Sprintf("Invalid data type for field '%s'", err.Field)
	default:
		message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	Error(w, http.StatusBadRequest, message)
}

// ValidationErrors reports failed struct validation with per field reasons
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	fields := make(map[string]string, len(errs))

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "required_without":
			message = fmt.Sprintf("This field is required when '%s' is missing", strings.ToLower(fieldError.Param()))
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "email":
			message = "Invalid email address"
		default:
			message = "Invalid value"
		}

		fields[fieldError.Field()] = message
	}

	writeJSON(w, http.StatusBadRequest, Response{
		StatusCode: http.StatusBadRequest,
		Data:       fields,
		Message:    "Request validation failed",
		Success:    false,
	})
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	if err := Validate(w, value); err != nil {
		return value, err
	}

	return value, nil
}

// Validate a struct that was bound outside of BindAndValidate (e.g. multipart forms)
func Validate(w http.ResponseWriter, value any) error {
	err := validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return err
	}

	return nil
}

// writeJSON sends data as json and enforces status code
func writeJSON(w http.ResponseWriter, code int, data any) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
