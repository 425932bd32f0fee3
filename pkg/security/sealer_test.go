package security

import (
	"bytes"
	"testing"
)

func TestNewSealer(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{
			name:    "valid 32-byte key",
			key:     make([]byte, 32),
			wantErr: false,
		},
		{
			name:    "invalid short key",
			key:     make([]byte, 16),
			wantErr: true,
		},
		{
			name:    "invalid long key",
			key:     make([]byte, 64),
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     []byte{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSealer(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSealer() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && s == nil {
				t.Error("NewSealer() returned nil without error")
			}
		})
	}
}

func TestSealUnsealRoundtrip(t *testing.T) {
	s, err := NewSealer(DeriveKeyFromDomain("example.com"))
	if err != nil {
		t.Fatalf("Failed to create Sealer: %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{
			name:      "short der",
			plaintext: []byte{0x30, 0x77, 0x02, 0x01, 0x01},
		},
		{
			name:      "binary data",
			plaintext: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD},
		},
		{
			name:      "large key material",
			plaintext: bytes.Repeat([]byte{0xAB}, 4096),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal(tt.plaintext)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}

			if bytes.Equal(sealed, tt.plaintext) {
				t.Error("Sealed form should not equal plaintext")
			}

			opened, err := s.Unseal(sealed)
			if err != nil {
				t.Fatalf("Unseal() error = %v", err)
			}

			if !bytes.Equal(opened, tt.plaintext) {
				t.Errorf("Unsealed data does not match original.\nGot:  %v\nWant: %v", opened, tt.plaintext)
			}
		})
	}
}

func TestUnsealErrors(t *testing.T) {
	s, _ := NewSealer(make([]byte, 32))

	tests := []struct {
		name       string
		ciphertext []byte
	}{
		{
			name:       "empty data",
			ciphertext: []byte{},
		},
		{
			name:       "too short data",
			ciphertext: []byte{0x01, 0x02},
		},
		{
			name:       "corrupted data",
			ciphertext: bytes.Repeat([]byte("x"), 100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Unseal(tt.ciphertext); err == nil {
				t.Error("Unseal() should fail")
			}
		})
	}
}

func TestUnsealWithWrongKey(t *testing.T) {
	s1, _ := NewSealer(DeriveKeyFromDomain("a.example.com"))
	s2, _ := NewSealer(DeriveKeyFromDomain("b.example.com"))

	sealed, err := s1.Seal([]byte("key material"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if _, err := s2.Unseal(sealed); err == nil {
		t.Error("Unseal() should fail with wrong key")
	}
}

func TestDeriveKeyFromDomain(t *testing.T) {
	key := DeriveKeyFromDomain("example.com")
	if len(key) != 32 {
		t.Errorf("DeriveKeyFromDomain() returned key of length %d, want 32", len(key))
	}

	// Deterministic: every server in the domain derives the same key.
	if !bytes.Equal(key, DeriveKeyFromDomain("example.com")) {
		t.Error("DeriveKeyFromDomain() should be deterministic")
	}

	if bytes.Equal(key, DeriveKeyFromDomain("other.example.com")) {
		t.Error("Different domains should produce different keys")
	}
}
