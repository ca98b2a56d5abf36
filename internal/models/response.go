package models

import "fmt"

// ReturnCode is the domain outcome of a store operation.
type ReturnCode int

const (
	OK ReturnCode = iota
	InvalidPassword
	WrongPassword
	GenericError
	NotFound
	Empty
)

var returnCodeNames = map[ReturnCode]string{
	OK:              "OK",
	InvalidPassword: "INVALID_PASSWORD",
	WrongPassword:   "WRONG_PASSWORD",
	GenericError:    "GENERIC_ERROR",
	NotFound:        "NOT_FOUND",
	Empty:           "EMPTY",
}

func (c ReturnCode) String() string {
	if s, ok := returnCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ReturnCode(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c ReturnCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ReturnCode) UnmarshalText(b []byte) error {
	for code, name := range returnCodeNames {
		if name == string(b) {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown return code %q", b)
}

// Response is the single result delivered for one executed action.
type Response struct {
	Code ReturnCode `json:"code"`
	// ID is the id assigned by AddRecord; zero otherwise.
	ID      int      `json:"id,omitempty"`
	Records []Record `json:"records,omitempty"`
	Summary string   `json:"summary,omitempty"`
	// Err holds the fault behind a GenericError code.
	Err error `json:"-"`
}
