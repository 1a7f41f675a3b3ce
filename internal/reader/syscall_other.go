//go:build windows

package reader

import (
	"context"
	"errors"
)

type SyscallReader struct{}

func (SyscallReader) Read(context.Context, string) ([]byte, error) {
	return nil, errors.ErrUnsupported
}
