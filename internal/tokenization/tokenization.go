/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tokenization keeps payout destinations (card numbers, IBANs, phone numbers)
// encrypted at rest while leaving a masked, human-readable hint in front of the ciphertext.
package tokenization

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

const (
	tokenPrefix  = "PRT:"
	visibleChars = 4
	// values shorter than this are masked completely
	minRevealLen = 8
)

// ErrNotToken is returned by Detokenize for values that were stored in clear.
var ErrNotToken = errors.New("value is not a destination token")

// TokenizationService converts destinations to tokens and back.
type TokenizationService struct {
	key []byte
}

// NewTokenizationService expects an AES-128, AES-192 or AES-256 key.
func NewTokenizationService(encryptionKey []byte) *TokenizationService {
	return &TokenizationService{key: encryptionKey}
}

// IsToken reports whether value was produced by Tokenize.
func IsToken(value string) bool {
	return strings.HasPrefix(value, tokenPrefix)
}

// Mask hides a destination for display. Layout separators stay in place and every other
// rune becomes '*', except the last four when at least eight of them are present.
func Mask(value string) string {
	runes := []rune(value)
	significant := 0
	for _, r := range runes {
		if !isSeparator(r) {
			significant++
		}
	}
	keep := 0
	if significant >= minRevealLen {
		keep = visibleChars
	}

	for i := len(runes) - 1; i >= 0; i-- {
		if isSeparator(runes[i]) {
			continue
		}
		if keep > 0 && unicode.IsPrint(runes[i]) {
			keep--
			continue
		}
		runes[i] = '*'
	}
	return string(runes)
}

func isSeparator(r rune) bool {
	return strings.ContainsRune(" -()+./", r)
}

// MaskedHint returns the display part of a token, or Mask(value) for clear values.
func MaskedHint(value string) string {
	if !IsToken(value) {
		return Mask(value)
	}
	rest := strings.TrimPrefix(value, tokenPrefix)
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		return rest[:i]
	}
	return rest
}

// Tokenize encrypts value with AES-GCM. Tokens look like "PRT:<masked>:<base64>".
func (s *TokenizationService) Tokenize(value string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(value), nil)
	return fmt.Sprintf("%s%s:%s", tokenPrefix, Mask(value), base64.StdEncoding.EncodeToString(sealed)), nil
}

// Detokenize reverses Tokenize.
func (s *TokenizationService) Detokenize(token string) (string, error) {
	if !IsToken(token) {
		return "", ErrNotToken
	}
	i := strings.LastIndex(token, ":")
	data, err := base64.StdEncoding.DecodeString(token[i+1:])
	if err != nil {
		return "", err
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("token too short")
	}
	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Reveal returns the clear destination whether or not value is a token.
func (s *TokenizationService) Reveal(value string) (string, error) {
	if !IsToken(value) {
		return value, nil
	}
	return s.Detokenize(value)
}

func (s *TokenizationService) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
