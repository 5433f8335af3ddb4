package link

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/duoplan/internal/plan"
)

// FileTransport keeps the current shareable address in a file, one URL per
// file. A missing file means the address is BaseURL with no token.
//
// Writes go to a temp file that is renamed over the target, so a watcher
// never sees a half-written address.
type FileTransport struct {
	path    string
	baseURL string
}

var _ Transport = (*FileTransport)(nil)

// NewFileTransport creates a transport over the address file at path.
func NewFileTransport(path, baseURL string) (*FileTransport, error) {
	if err := ValidateAddress(baseURL); err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	return &FileTransport{path: path, baseURL: baseURL}, nil
}

// Path returns the address file path.
func (f *FileTransport) Path() string {
	return f.path
}

// Address returns the current shareable address.
func (f *FileTransport) Address(_ context.Context) (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f.baseURL, nil
		}
		return "", plan.NewError(plan.ErrCodeTransportUnavailable, "read address file", err)
	}
	addr := strings.TrimSpace(string(b))
	if addr == "" {
		return f.baseURL, nil
	}
	return addr, nil
}

// SetAddress replaces the current address, e.g. with a link received from
// the other user.
func (f *FileTransport) SetAddress(_ context.Context, address string) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}
	return f.write(address)
}

// ReadToken implements Transport.
func (f *FileTransport) ReadToken(ctx context.Context) (string, bool, error) {
	addr, err := f.Address(ctx)
	if err != nil {
		return "", false, err
	}
	return TokenOf(addr)
}

// WriteToken implements Transport.
func (f *FileTransport) WriteToken(ctx context.Context, token string) (string, error) {
	addr, err := f.update(ctx, TokenParam, token)
	if err != nil {
		return "", err
	}
	return addr, nil
}

// ClearToken implements Transport.
func (f *FileTransport) ClearToken(ctx context.Context) error {
	_, err := f.update(ctx, TokenParam, "")
	return err
}

// DocumentID implements Transport.
func (f *FileTransport) DocumentID(ctx context.Context) (string, error) {
	addr, err := f.Address(ctx)
	if err != nil {
		return "", err
	}
	return DocumentOf(addr)
}

// SetDocumentID implements Transport.
func (f *FileTransport) SetDocumentID(ctx context.Context, id string) error {
	_, err := f.update(ctx, DocumentParam, id)
	return err
}

func (f *FileTransport) update(ctx context.Context, key, value string) (string, error) {
	addr, err := f.Address(ctx)
	if err != nil {
		return "", err
	}
	next, err := WithParam(addr, key, value)
	if err != nil {
		return "", err
	}
	if err := f.write(next); err != nil {
		return "", err
	}
	return next, nil
}

func (f *FileTransport) write(address string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return plan.NewError(plan.ErrCodeTransportUnavailable, "create address directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return plan.NewError(plan.ErrCodeTransportUnavailable, "create temp address file", err)
	}
	defer os.Remove(tmp.Name()) // No-op after a successful rename

	if _, err := tmp.WriteString(address + "\n"); err != nil {
		tmp.Close()
		return plan.NewError(plan.ErrCodeTransportUnavailable, "write address file", err)
	}
	if err := tmp.Close(); err != nil {
		return plan.NewError(plan.ErrCodeTransportUnavailable, "close address file", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return plan.NewError(plan.ErrCodeTransportUnavailable, "replace address file", err)
	}
	return nil
}
