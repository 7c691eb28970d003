package storage

import (
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), true)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	plaintext := []byte(`{"id":"123456789012","status":"Wanted"}`)

	ciphertext, err := fs.encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if string(ciphertext) == string(plaintext) {
		t.Error("ciphertext should differ from plaintext")
	}

	decrypted, err := fs.decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("decrypted text doesn't match: got %s, want %s", decrypted, plaintext)
	}
}

func TestDecrypt_InvalidData(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), true)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	if _, err := fs.decrypt([]byte("short")); err != ErrEncryption {
		t.Errorf("expected ErrEncryption for short data, got %v", err)
	}
	if _, err := fs.decrypt(make([]byte, 100)); err != ErrEncryption {
		t.Errorf("expected ErrEncryption for invalid data, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusFree, StatusWanted, true},
		{StatusFree, StatusFound, false},
		{StatusFree, StatusFree, true},
		{StatusWanted, StatusFree, true},
		{StatusWanted, StatusFound, true},
		{StatusWanted, StatusWanted, true},
		{StatusFound, StatusWanted, true},
		{StatusFound, StatusFree, true},
		{StatusFound, StatusFound, true},
		{StatusFree, "Bogus", false},
		{"Bogus", "Bogus", false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"wanted", StatusWanted, false},
		{" Free ", StatusFree, false},
		{"FOUND", StatusFound, false},
		{"arrested", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindCriminal, false},
		{"Criminal", KindCriminal, false},
		{" missing ", KindMissing, false},
		{"suspect", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseKind(%q) = %q, %v", tt.in, got, err)
		}
	}

	if Kind("").OrDefault() != KindCriminal || KindMissing.OrDefault() != KindMissing {
		t.Error("OrDefault should only replace the empty kind")
	}
}

func TestValidateID(t *testing.T) {
	valid := []string{"123456789012", "AB-12_x"}
	invalid := []string{"", "has space", "../up", "a/b", string(make([]byte, 65))}

	for _, id := range valid {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) unexpected error %v", id, err)
		}
	}
	for _, id := range invalid {
		if err := ValidateID(id); err == nil {
			t.Errorf("ValidateID(%q) expected error", id)
		}
	}
}
