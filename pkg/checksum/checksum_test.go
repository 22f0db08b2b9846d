package checksum

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	for _, algo := range SupportedAlgorithms {
		assert.True(t, IsSupported(algo))
	}
	assert.False(t, IsSupported("sha3-256"))
}

func TestVerifyMatches(t *testing.T) {
	body := "hello world"
	sum := sha1.Sum([]byte(body))
	expected := base64.StdEncoding.EncodeToString(sum[:])

	ok, err := Verify("sha1", expected, strings.NewReader(body))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMismatch(t *testing.T) {
	ok, err := Verify("sha1", "not-a-real-digest", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyUnsupportedAlgorithm(t *testing.T) {
	_, err := Verify("sha3-256", "xxx", strings.NewReader("hello world"))
	require.Error(t, err)
}
