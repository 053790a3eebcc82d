/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package secrets

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, keyLength)
	for i := range key {
		key[i] = byte(i)
	}

	return key
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	encoded, err := c.Encrypt([]byte(`{"username":"admin","password":"s3cret"}`))
	require.NoError(t, err)

	plaintext, err := c.Decrypt(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"admin","password":"s3cret"}`, string(plaintext))
}

func TestNewCipher_RejectsShortKey(t *testing.T) {
	_, err := NewCipher([]byte("too-short"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestNewCipherFromHex(t *testing.T) {
	c, err := NewCipherFromHex(hex.EncodeToString(testKey()))
	require.NoError(t, err)

	encoded, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	plaintext, err := c.Decrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plaintext))
}

func TestNewCipherFromHex_InvalidEncoding(t *testing.T) {
	_, err := NewCipherFromHex("not-hex")
	assert.Error(t, err)
}

func TestCipher_DecryptRejectsTampered(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	encoded, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0xff

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestCipher_DecryptRejectsShortPayload(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("abc")))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestCipher_DecryptRejectsBadBase64(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	_, err = c.Decrypt("%%%not-base64%%%")
	assert.Error(t, err)
}

func TestCipher_DifferentKeysCannotDecrypt(t *testing.T) {
	c1, err := NewCipher(testKey())
	require.NoError(t, err)

	other := testKey()
	other[0] ^= 0xff
	c2, err := NewCipher(other)
	require.NoError(t, err)

	encoded, err := c1.Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = c2.Decrypt(encoded)
	assert.Error(t, err)
}
