// Package link holds the shareable address that carries a state token.
//
// The address is an ordinary URL. The token travels in the "data" query
// parameter and the optional document handle in "docId":
//
//	http://localhost:5173/?data=eyJ2Ijo...&docId=0190...
//
// The engine never touches URLs directly. It reads, writes and clears the
// token through a Transport.
package link

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/roach88/duoplan/internal/plan"
)

// Query parameters of the shareable address.
const (
	TokenParam    = "data"
	DocumentParam = "docId"
)

// Transport reads and writes the token of the current shareable address.
// Implemented by FileTransport (production) and Memory (tests).
type Transport interface {
	// ReadToken returns the token in the current address, if any.
	ReadToken(ctx context.Context) (string, bool, error)

	// WriteToken puts token into the current address in place and returns
	// the complete address.
	WriteToken(ctx context.Context, token string) (string, error)

	// ClearToken removes the token from the current address.
	ClearToken(ctx context.Context) error

	// DocumentID returns the document handle of the current address, or "".
	DocumentID(ctx context.Context) (string, error)

	// SetDocumentID puts a document handle into the current address.
	SetDocumentID(ctx context.Context, id string) error
}

// TokenOf extracts the token from an address.
func TokenOf(address string) (string, bool, error) {
	return param(address, TokenParam)
}

// DocumentOf extracts the document handle from an address.
func DocumentOf(address string) (string, error) {
	id, _, err := param(address, DocumentParam)
	return id, err
}

// WithParam returns address with the query parameter key set to value, or
// removed when value is empty.
func WithParam(address, key, value string) (string, error) {
	u, err := parse(address)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if value == "" {
		q.Del(key)
	} else {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func param(address, key string) (string, bool, error) {
	u, err := parse(address)
	if err != nil {
		return "", false, err
	}
	v := strings.TrimSpace(u.Query().Get(key))
	return v, v != "", nil
}

func parse(address string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return nil, plan.NewError(plan.ErrCodeTransportUnavailable, "invalid shareable address", err)
	}
	return u, nil
}

// ValidateAddress checks that address is an absolute http(s) URL.
func ValidateAddress(address string) error {
	u, err := parse(address)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return plan.NewError(plan.ErrCodeTransportUnavailable,
			fmt.Sprintf("shareable address must be http or https, got %q", address), nil)
	}
	if u.Host == "" {
		return plan.NewError(plan.ErrCodeTransportUnavailable,
			fmt.Sprintf("shareable address has no host: %q", address), nil)
	}
	return nil
}
