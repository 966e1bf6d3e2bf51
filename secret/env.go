package secret

import (
	"context"
	"encoding/base64"
	"os"
)

// EnvSource reads secrets from environment variables. Values may be base64
// encoded; anything that does not decode is taken verbatim.
type EnvSource struct{}

func NewEnvSource() *EnvSource { return &EnvSource{} }

var _ Source = (*EnvSource)(nil)

func (s *EnvSource) Get(_ context.Context, name string) (Secret, error) {
	v := os.Getenv(name)
	if v == "" {
		return nil, ErrSecretNotFound
	}

	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return []byte(v), nil
	}

	return b, nil
}
