// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Envelope wraps every backend response.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Errors  []FieldError    `json:"errors,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// HasData reports whether a non-null data member was present.
func (e *Envelope) HasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// FieldError is one entry of the envelope's errors array. The backend sends
// either plain strings or {"field": ..., "message": ...} objects.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts both shapes.
func (fe *FieldError) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode field error: %w", err)
		}
		*fe = FieldError{Message: s}
		return nil
	}
	// alias drops the method set so the call below does not recurse
	type alias FieldError
	var a struct {
		alias
		Path string `json:"path"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode field error: %w", err)
	}
	*fe = FieldError(a.alias)
	if fe.Field == "" {
		fe.Field = a.Path
	}
	if fe.Message == "" {
		fe.Message = a.Msg
	}
	return nil
}

func (fe FieldError) String() string {
	if fe.Field == "" {
		return fe.Message
	}
	return fe.Field + ": " + fe.Message
}

// Result is what session operations hand back to the caller.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OK is the successful Result.
func OK() Result { return Result{Success: true} }

// Failed returns an unsuccessful Result carrying msg.
func Failed(msg string) Result { return Result{Error: msg} }
