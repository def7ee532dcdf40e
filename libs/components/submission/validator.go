package submission

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
	"strings"

	"github.com/elvnski/actserv/libs/components/form"
)

// Reserved payload keys. They travel with the payload but are never stored
// as Data Entries.
const (
	KeyClientIdentifier = "clientIdentifier"
	KeyFormSlug         = "formSlug"
)

// Client-facing messages.
const (
	MsgFormUnavailable   = "Form not found or is inactive"
	MsgClientIdentifier  = "Client identifier is required"
	MsgInvalidNumber     = "Must be a valid number"
	msgRequired          = "%s is required"
	msgDependentRequired = "%s is required because '%s' condition was met."
)

// ErrFormUnavailable is returned when the target form is missing or inactive.
var ErrFormUnavailable = errors.New("form not found or is inactive")

// ValidationError maps field names to every rule they violated.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "submission invalid: " + strings.Join(keys, ", ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Upload is one file received under a field name.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// UploadFromMultipart adapts a multipart file header.
func UploadFromMultipart(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Input is a client submission before validation.
type Input struct {
	ClientIdentifier string
	Values           map[string]string
	Files            map[string][]Upload
}

func (in Input) clientIdentifier() string {
	if id := strings.TrimSpace(in.ClientIdentifier); id != "" {
		return id
	}
	return strings.TrimSpace(in.Values[KeyClientIdentifier])
}

// Flatten merges scalar values and uploads into one namespace. A field with
// at least one upload carries its first filename as a presence marker.
func Flatten(in Input) map[string]string {
	out := make(map[string]string, len(in.Values)+len(in.Files)+1)
	for k, v := range in.Values {
		out[k] = v
	}
	for name, uploads := range in.Files {
		if len(uploads) == 0 {
			continue
		}
		marker := uploads[0].Filename
		if marker == "" {
			marker = "file"
		}
		out[name] = marker
	}
	if id := in.clientIdentifier(); id != "" {
		out[KeyClientIdentifier] = id
	}
	return out
}

// Validate checks a submission against a form's fields without side effects.
// An unavailable form or missing client identifier fails immediately; other
// violations are collected across all fields.
func Validate(f *form.Form, in Input) error {
	if f == nil || !f.IsActive {
		return ErrFormUnavailable
	}
	if in.clientIdentifier() == "" {
		verr := &ValidationError{}
		verr.add(KeyClientIdentifier, MsgClientIdentifier)
		return verr
	}

	payload := Flatten(in)
	verr := &ValidationError{}

	for _, field := range f.Fields {
		value := payload[field.Name]

		if field.IsRequired && value == "" {
			verr.add(field.Name, fmt.Sprintf(msgRequired, field.Label))
		}

		if dep, ok := field.Config().Dependency(); ok && value == "" && dep.Met(payload[dep.TargetField]) {
			verr.add(field.Name, fmt.Sprintf(msgDependentRequired, field.Label, dep.TargetField))
		}

		if field.Type == form.TypeNumber && value != "" && !isDigits(value) {
			verr.add(field.Name, MsgInvalidNumber)
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func isReserved(name string) bool {
	return name == KeyClientIdentifier || name == KeyFormSlug
}
