package secret

import (
	"bytes"
	"context"
	"os"
)

// FileSource reads secrets from mounted files, e.g. Kubernetes secret
// volumes. Trailing newlines are stripped.
type FileSource struct{}

func NewFileSource() *FileSource { return &FileSource{} }

var _ Source = (*FileSource)(nil)

func (s *FileSource) Get(_ context.Context, name string) (Secret, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSecretNotFound
		}

		return nil, err
	}

	return bytes.TrimRight(b, "\n"), nil
}
