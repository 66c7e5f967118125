package broker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuth1Signer_AuthorizeProducesWellFormedHeader(t *testing.T) {
	signer := newOAuth1Signer("consumer-key", "consumer-secret")

	header, err := signer.Authorize("GET", "https://api.example.com/market/quote/AAPL", "tok", "toksecret", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(header, "OAuth "))
	for _, field := range []string{"oauth_consumer_key", "oauth_nonce", "oauth_signature", "oauth_signature_method", "oauth_timestamp", "oauth_token", "oauth_version"} {
		assert.Contains(t, header, field)
	}
	assert.Contains(t, header, `oauth_signature_method="HMAC-SHA1"`)
}

func TestOAuth1Signer_DifferentRequestsSignDifferently(t *testing.T) {
	signer := newOAuth1Signer("consumer-key", "consumer-secret")

	h1, err := signer.Authorize("GET", "https://api.example.com/market/quote/AAPL", "tok", "toksecret", nil)
	require.NoError(t, err)
	h2, err := signer.Authorize("GET", "https://api.example.com/market/quote/MSFT", "tok", "toksecret", nil)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestPercentEncode_RFC3986(t *testing.T) {
	assert.Equal(t, "A-Za-z0-9-._~", percentEncode("A-Za-z0-9-._~"))
	assert.Equal(t, "%2F", percentEncode("/"))
	assert.Equal(t, "a%20b", percentEncode("a b"))
}
