package secret

import (
	"context"
	"errors"
)

type (
	Secret = []byte

	// Source resolves a named secret, such as the upstream API key.
	Source interface {
		Get(context.Context, string) (Secret, error)
	}
)

var ErrSecretNotFound = errors.New("secret not found")
