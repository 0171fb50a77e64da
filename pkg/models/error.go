package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Sentinel error codes understood by the portal. Server codes are passed
// through verbatim; these are the ones the client produces or reacts to.
const (
	CodeServiceUnavailable       = "ServiceUnavailable"
	CodeUnreachableServer        = "UnreachableServer"
	CodeServerError              = "ServerError"
	CodeRepositoryAlreadyPresent = "RepositoryAlreadyPresent"
	CodeViewLoadFailed           = "ViewLoadFailed"
	CodeInvalidCredentials       = "InvalidCredentials"
	CodeNotFound                 = "NotFound"

	// session no longer valid
	CodeNotSignedIn       = "NotSignedIn"
	CodeSessionExpired    = "SessionExpired"
	CodeSessionTimeout    = "SessionTimeout"
	CodePermissionRevoked = "PermissionRevoked"
	CodeInvalidToken      = "InvalidToken"
)

// ErrorKind classifies where a failure came from
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransport
	KindProtocol
	KindApplication
	KindModuleLoad
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	case KindModuleLoad:
		return "module-load"
	default:
		return "unknown"
	}
}

// ErrorInfo is the normalized shape of every failed API call.
// The JSON form is the server's error body: {"code": ..., "data": {...}}.
type ErrorInfo struct {
	Code string         `json:"code"`
	Data map[string]any `json:"data,omitempty"`

	Kind   ErrorKind `json:"-"`
	Status int       `json:"-"`
	Cause  error     `json:"-"`
}

func (e *ErrorInfo) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error %q: %v", e.Kind, e.Code, e.Cause)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error %q (status %d)", e.Kind, e.Code, e.Status)
	}
	return fmt.Sprintf("%s error %q", e.Kind, e.Code)
}

func (e *ErrorInfo) Unwrap() error {
	return e.Cause
}

// DataType returns data.type when it is a string, or "".
func (e *ErrorInfo) DataType() string {
	if e.Data == nil {
		return ""
	}
	t, _ := e.Data["type"].(string)
	return t
}

// UnmarshalJSON accepts "code" as either a JSON string or a JSON number.
func (e *ErrorInfo) UnmarshalJSON(b []byte) error {
	var raw struct {
		Code json.RawMessage `json:"code"`
		Data map[string]any  `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	code, err := decodeCode(raw.Code)
	if err != nil {
		return err
	}
	e.Code = code
	e.Data = raw.Data
	return nil
}

func decodeCode(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("code is neither string nor number: %s", raw)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
