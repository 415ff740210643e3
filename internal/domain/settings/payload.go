package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"unicode/utf8"
)

// ErrMalformedPayload matches every ParseError via errors.Is.
var ErrMalformedPayload = errors.New("malformed configuration payload")

// Parse stages reported by ParseError.
const (
	StageDecode = "decode"
	StageJSON   = "json"
	StageNull   = "null"
)

// ParseError reports why a configuration page response could not be turned
// into a ConfigurationPayload.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("configuration payload %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedPayload.
func (e *ParseError) Is(target error) bool { return target == ErrMalformedPayload }

// ConfigurationPayload is the object posted back by the configuration page.
// Only date is read. Date holds the raw JSON value, or nil when the field is
// absent.
type ConfigurationPayload struct {
	Date json.RawMessage
}

// HasDate reports whether the payload carried a date field.
func (p ConfigurationPayload) HasDate() bool { return p.Date != nil }

// ParseConfigurationPayload URL-decodes raw and parses the result as JSON.
//
// Percent escapes are decoded the way decodeURIComponent does: '+' is kept
// literally and the decoded bytes must be valid UTF-8. Any JSON value is
// accepted except null; non-object values simply have no date.
func ParseConfigurationPayload(raw string) (ConfigurationPayload, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return ConfigurationPayload{}, &ParseError{Stage: StageDecode, Err: err}
	}
	if !utf8.ValidString(decoded) {
		return ConfigurationPayload{}, &ParseError{Stage: StageDecode, Err: errors.New("invalid UTF-8 sequence")}
	}

	var doc json.RawMessage
	if err := json.Unmarshal([]byte(decoded), &doc); err != nil {
		return ConfigurationPayload{}, &ParseError{Stage: StageJSON, Err: err}
	}

	doc = bytes.TrimSpace(doc)
	switch doc[0] {
	case 'n':
		return ConfigurationPayload{}, &ParseError{Stage: StageNull, Err: errors.New("payload is null")}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(doc, &fields); err != nil {
			return ConfigurationPayload{}, &ParseError{Stage: StageJSON, Err: err}
		}
		return ConfigurationPayload{Date: fields["date"]}, nil
	default:
		return ConfigurationPayload{}, nil
	}
}
