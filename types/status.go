package types

import (
	"fmt"
	"strconv"
)

// Status defines the verdict status
type Status int

// Verdict status, every execution ends in exactly one of them
const (
	// not initialized status
	StatusInvalid Status = iota

	StatusPassed
	StatusFailed
	StatusError
)

var statusToString = []string{
	"invalid",
	"passed",
	"failed",
	"error",
}

var stringToStatus = make(map[string]Status)

func init() {
	for i, v := range statusToString {
		stringToStatus[v] = Status(i)
	}
}

func (s Status) String() string {
	si := int(s)
	if si < 0 || si >= len(statusToString) {
		return statusToString[0]
	}
	return statusToString[si]
}

// StringToStatus convert string to Status
func StringToStatus(s string) (Status, error) {
	v, ok := stringToStatus[s]
	if !ok {
		return 0, fmt.Errorf("invalid status string: %s", s)
	}
	return v, nil
}

// MarshalJSON encodes status as string
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// UnmarshalJSON decodes status from string
func (s *Status) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("invalid status %s: %w", b, err)
	}
	v, err := StringToStatus(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler for toml / yaml
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for toml / yaml
func (s *Status) UnmarshalText(b []byte) error {
	v, err := StringToStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
