// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// Request is one logical request. The body is encoded once so retries send
// identical bytes.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header

	// SkipRefresh turns off 401 recovery. Login and refresh use it.
	SkipRefresh bool

	refreshed   bool
	csrfRetried bool
	sentToken   string
	sentCSRF    string
}

// NewRequest encodes body as JSON. body may be nil, []byte or
// json.RawMessage (sent as-is), or any value json can marshal.
func NewRequest(method, path string, body any, query url.Values) (*Request, error) {
	req := &Request{
		Method: method,
		Path:   path,
		Query:  query,
		Header: make(http.Header),
	}
	switch b := body.(type) {
	case nil:
	case []byte:
		req.Body = b
	case json.RawMessage:
		req.Body = b
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		req.Body = data
	}
	return req, nil
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Response is a 2xx response with its body read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the envelope's data member into v, or the whole body
// when the response is not enveloped.
func (r *Response) Decode(v any) error {
	body := bytes.TrimSpace(r.Body)
	if len(body) == 0 {
		return nil
	}
	if body[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(body, &probe); err == nil {
			if data, ok := probe["data"]; ok {
				body = data
			}
		}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
