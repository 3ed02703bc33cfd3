package bcrypt_test

import (
	"testing"

	"github.com/sefazor/storycredits/pkg/bcrypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := bcrypt.HashSecret("s3cret-admin")
	require.NoError(t, err)
	assert.True(t, bcrypt.VerifyHash(hash))

	assert.NoError(t, bcrypt.CompareSecret(hash, "s3cret-admin"))
	assert.ErrorIs(t, bcrypt.CompareSecret(hash, "guess"), bcrypt.ErrMismatch)
	assert.Error(t, bcrypt.CompareSecret("plain", "plain"))

	_, err = bcrypt.HashSecret("")
	assert.Error(t, err)
}
