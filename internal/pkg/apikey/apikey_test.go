package apikey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		prefix string
		want   string
		wantOK bool
	}{
		{"valid", "sk-dam-abc123", "sk-dam-", "abc123", true},
		{"wrong prefix", "sk-other-abc", "sk-dam-", "", false},
		{"prefix only", "sk-dam-", "sk-dam-", "", false},
		{"empty prefix passes through", "abc", "", "abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw, tt.prefix)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup(t *testing.T) {
	a := Lookup("pepper", "secret")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Lookup("pepper", "secret"))
	assert.NotEqual(t, a, Lookup("other", "secret"))
	assert.NotEqual(t, a, Lookup("pepper", "secret2"))
}

func TestHashAndVerify(t *testing.T) {
	phc, err := Hash("s3cret", "pep")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$m=16384,t=2,p=1$"))

	other, err := Hash("s3cret", "pep")
	require.NoError(t, err)
	assert.NotEqual(t, phc, other, "salt must differ")

	ok, err := Verify("s3cret", "pep", phc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("wrong", "pep", phc)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Verify("s3cret", "other-pepper", phc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_EmptySecret(t *testing.T) {
	_, err := Hash("", "pep")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestVerify_Malformed(t *testing.T) {
	tests := []struct {
		name string
		phc  string
		want error
	}{
		{"bcrypt", "$2a$10$abc", ErrUnsupportedFormat},
		{"too few parts", "$argon2id$v=19$m=1", ErrMalformedHash},
		{"bad params", "$argon2id$v=19$nope$c2FsdA$a2V5", ErrMalformedHash},
		{"bad salt", "$argon2id$v=19$m=16384,t=2,p=1$!!!$a2V5", ErrMalformedHash},
		{"bad key", "$argon2id$v=19$m=16384,t=2,p=1$c2FsdA$!!!", ErrMalformedHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Verify("s", "p", tt.phc)
			assert.False(t, ok)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
