package js

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func wrapNotExist() error {
	return fmt.Errorf("open config: %w", fs.ErrNotExist)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, statErr := os.Stat(filepath.Join(dir, "missing"))
	_, readDirErr := os.ReadFile(dir)

	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{nil, ""},
		{wrapNotExist(), NotFound},
		{statErr, NotFound},
		{fs.ErrPermission, PermissionDenied},
		{fs.ErrExist, AlreadyExists},
		{fs.ErrClosed, BadResource},
		{ErrInvalidData, InvalidData},
		{assert.AnError, Other},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, KindOf(c.err), "%v", c.err)
	}
	assert.NotEqual(t, NotFound, KindOf(readDirErr))
}
