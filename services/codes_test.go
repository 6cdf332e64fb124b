package services

import (
	"strings"
	"testing"
)

func TestGenerateJoinCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := generateJoinCode()
		if len(code) != codeLength {
			t.Fatalf("code %q length = %d, want %d", code, len(code), codeLength)
		}
		for _, ch := range code {
			if !strings.ContainsRune(codeAlphabet, ch) {
				t.Fatalf("code %q contains %q outside the alphabet", code, ch)
			}
		}
		seen[code] = true
	}
	// 100 draws from a 32^6 space colliding down to a handful would mean the
	// generator is broken.
	if len(seen) < 90 {
		t.Errorf("only %d distinct codes in 100 draws", len(seen))
	}
}

func TestCodeAlphabetOmitsAmbiguousCharacters(t *testing.T) {
	for _, ch := range "0O1I" {
		if strings.ContainsRune(codeAlphabet, ch) {
			t.Errorf("alphabet contains ambiguous character %q", ch)
		}
	}
}
