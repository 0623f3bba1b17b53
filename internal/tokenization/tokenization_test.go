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

package tokenization

import (
	"strings"
	"testing"
)

var testKey = []byte("0123456789ABCDEF0123456789ABCDEF")

func TestTokenizeDetokenize(t *testing.T) {
	service := NewTokenizationService(testKey)
	destinations := []string{
		"4276 1600 1234 5678",
		"GB82WEST12345698765432",
		"+7 (999) 123-45-67",
		"",
		"🔒🔑",
	}

	for _, original := range destinations {
		token, err := service.Tokenize(original)
		if err != nil {
			t.Errorf("Tokenize(%q) error: %v", original, err)
			continue
		}
		if !IsToken(token) {
			t.Errorf("Expected %q to be recognised as a token", token)
		}
		if original != "" && strings.Contains(token, original) {
			t.Errorf("Token %q leaks the original value", token)
		}

		decrypted, err := service.Detokenize(token)
		if err != nil {
			t.Errorf("Detokenize(%q) error: %v", token, err)
			continue
		}
		if decrypted != original {
			t.Errorf("Expected %q, got %q", original, decrypted)
		}
	}
}

func TestTokensAreNotDeterministic(t *testing.T) {
	service := NewTokenizationService(testKey)
	a, _ := service.Tokenize("4276160012345678")
	b, _ := service.Tokenize("4276160012345678")
	if a == b {
		t.Error("Expected different tokens for repeated tokenization")
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"4276 1600 1234 5678":    "**** **** **** 5678",
		"+7 (999) 123-45-67":     "+* (***) ***-45-67",
		"GB82WEST12345698765432": "******************5432",
		"12345678":               "****5678",
		"1234567":                "*******",
		"abc":                    "***",
		"12-34":                  "**-**",
		"🔒🔑":                     "**",
		"":                       "",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskNeverEchoesShortValues(t *testing.T) {
	service := NewTokenizationService(testKey)
	for _, in := range []string{"a", "42", "abcd", "🔒", "🔒🔑", "ab:cd", "1234567"} {
		if got := MaskedHint(in); got == in || strings.ContainsAny(got, strings.Trim(in, " -()+./")) {
			t.Errorf("MaskedHint(%q) = %q leaks the value", in, got)
		}
		token, err := service.Tokenize(in)
		if err != nil {
			t.Fatal(err)
		}
		if hint := MaskedHint(token); strings.ContainsAny(hint, in) {
			t.Errorf("token hint %q leaks %q", hint, in)
		}
	}
}

func TestMaskedHint(t *testing.T) {
	service := NewTokenizationService(testKey)
	token, err := service.Tokenize("4276160012345678")
	if err != nil {
		t.Fatal(err)
	}
	if got := MaskedHint(token); got != "************5678" {
		t.Errorf("unexpected hint %q", got)
	}
	if got := MaskedHint("4276160012345678"); got != "************5678" {
		t.Errorf("unexpected hint for clear value %q", got)
	}
}

func TestRevealAndErrors(t *testing.T) {
	service := NewTokenizationService(testKey)

	clear, err := service.Reveal("plain-destination")
	if err != nil || clear != "plain-destination" {
		t.Errorf("Reveal of clear value = %q, %v", clear, err)
	}

	if _, err := service.Detokenize("plain-destination"); err != ErrNotToken {
		t.Errorf("Expected ErrNotToken, got %v", err)
	}

	token, _ := service.Tokenize("secret")
	other := NewTokenizationService([]byte("FEDCBA9876543210FEDCBA9876543210"))
	if _, err := other.Detokenize(token); err == nil {
		t.Error("Expected error when detokenizing with the wrong key")
	}

	if _, err := NewTokenizationService([]byte("short")).Tokenize("x"); err == nil {
		t.Error("Expected error for invalid key size")
	}
}
