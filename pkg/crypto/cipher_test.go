package crypto

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cipher, err := EncryptString("secret", "+380998887766")
	if err != nil {
		t.Fatalf("EncryptString returned error: %v", err)
	}
	if string(cipher) == "+380998887766" {
		t.Fatal("ciphertext equals plaintext")
	}
	plain, err := DecryptToString("secret", cipher)
	if err != nil {
		t.Fatalf("DecryptToString returned error: %v", err)
	}
	if plain != "+380998887766" {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	cipher, err := EncryptString("secret", "payload")
	if err != nil {
		t.Fatalf("EncryptString returned error: %v", err)
	}
	if _, err := DecryptToString("other", cipher); err == nil {
		t.Fatal("expected decryption failure with wrong key")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("abc12345")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if err := ComparePassword(hash, "abc12345"); err != nil {
		t.Fatalf("ComparePassword rejected valid password: %v", err)
	}
	if err := ComparePassword(hash, "abc12346"); err == nil {
		t.Fatal("ComparePassword accepted wrong password")
	}
}
