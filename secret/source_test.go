package secret

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvSource(t *testing.T) {
	source := NewEnvSource()

	t.Run("missing variable", func(t *testing.T) {
		_, err := source.Get(context.Background(), "GATEWAY_TEST_MISSING")
		assert.ErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("plain value", func(t *testing.T) {
		t.Setenv("GATEWAY_TEST_PLAIN", "sk-plain!")

		s, err := source.Get(context.Background(), "GATEWAY_TEST_PLAIN")
		assert.NoError(t, err)
		assert.Equal(t, Secret("sk-plain!"), s)
	})

	t.Run("base64 value", func(t *testing.T) {
		t.Setenv("GATEWAY_TEST_B64", base64.StdEncoding.EncodeToString([]byte("sk-decoded")))

		s, err := source.Get(context.Background(), "GATEWAY_TEST_B64")
		assert.NoError(t, err)
		assert.Equal(t, Secret("sk-decoded"), s)
	})
}

func TestFileSource(t *testing.T) {
	source := NewFileSource()

	t.Run("missing file", func(t *testing.T) {
		_, err := source.Get(context.Background(), filepath.Join(t.TempDir(), "absent"))
		assert.ErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("strips trailing newline", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "key")
		assert.NoError(t, os.WriteFile(p, []byte("sk-file\n"), 0o600))

		s, err := source.Get(context.Background(), p)
		assert.NoError(t, err)
		assert.Equal(t, Secret("sk-file"), s)
	})
}

type flakySource struct {
	failures int
	calls    int
}

func (f *flakySource) Get(context.Context, string) (Secret, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, ErrSecretNotFound
	}

	return Secret("sk-eventually"), nil
}

func TestBackoffSource(t *testing.T) {
	t.Run("succeeds after retries", func(t *testing.T) {
		flaky := &flakySource{failures: 2}
		source := NewBackoffSource(3, time.Millisecond, flaky)

		s, err := source.Get(context.Background(), "key")
		assert.NoError(t, err)
		assert.Equal(t, Secret("sk-eventually"), s)
		assert.Equal(t, 3, flaky.calls)
	})

	t.Run("gives up after the tries are spent", func(t *testing.T) {
		flaky := &flakySource{failures: 10}
		source := NewBackoffSource(2, time.Millisecond, flaky)

		_, err := source.Get(context.Background(), "key")
		assert.Error(t, err)
		assert.Equal(t, 2, flaky.calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		source := NewBackoffSource(5, time.Minute, &flakySource{failures: 10})

		_, err := source.Get(ctx, "key")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
