// Package http provides the JSON API server and its handlers.
//
// This file implements helpers for decoding JSON bodies and reading query
// parameters with defaults.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"aarthik/internal/core"
)

// DecodeJSON decodes the request body into v. Unknown fields, trailing data
// and malformed JSON are invalid arguments.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return err
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty request body", core.ErrInvalidArgument)
		case errors.Is(err, core.ErrInvalidArgument):
			return err
		default:
			return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidArgument, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", core.ErrInvalidArgument)
	}
	return nil
}

// QueryInt reads an integer query parameter, returning def when it is absent.
func QueryInt(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidArgument, key)
	}
	return n, nil
}

// QueryType reads an optional transaction type query parameter.
func QueryType(query url.Values, key string) (core.TransactionType, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return "", nil
	}
	return core.ParseTransactionType(v)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
