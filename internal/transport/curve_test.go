package transport

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	server, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	msg := []byte(`{"event_type":"ee.user_done"}`)
	sealed, err := Seal(msg, server.Public)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if string(sealed) == string(msg) {
		t.Fatal("sealed payload equals plaintext")
	}

	got, err := Open(sealed, server)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != string(msg) {
		t.Fatalf("Open() = %q, want %q", got, msg)
	}
}

func TestOpenRejectsForeignKey(t *testing.T) {
	server, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	sealed, err := Seal([]byte("hello"), server.Public)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(sealed, other); err == nil {
		t.Fatal("Open succeeded with the wrong keypair")
	}
}
