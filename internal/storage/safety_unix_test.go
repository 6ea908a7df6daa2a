//go:build !windows

package storage

import (
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDiskFullError(t *testing.T) {
	assert.False(t, isDiskFullError(nil))
	assert.False(t, isDiskFullError(errors.New("boom")))
	assert.True(t, isDiskFullError(syscall.ENOSPC))
	assert.True(t, isDiskFullError(&os.PathError{Op: "write", Path: "x", Err: syscall.ENOSPC}))
	assert.False(t, isDiskFullError(&os.PathError{Op: "write", Path: "x", Err: syscall.EACCES}))
}
