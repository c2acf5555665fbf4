package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	var raw [AddressLength]byte
	raw[0] = 0xde
	raw[19] = 0xad
	addr := MustNewAddress(DQPrefix, raw[:])

	encoded := addr.String()
	if !strings.HasPrefix(encoded, "dq1") {
		t.Fatalf("encoded address %q missing dq prefix", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != DQPrefix {
		t.Fatalf("prefix: got %q", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw[:]) {
		t.Fatalf("bytes: got %x want %x", decoded.Bytes(), raw)
	}
}

func TestNewAddressRejectsBadLength(t *testing.T) {
	if _, err := NewAddress(DQPrefix, []byte{0x01, 0x02}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not-an-address", "dq1qqqq"} {
		if _, err := DecodeAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestKeyDerivesPrefixedAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != DQPrefix {
		t.Fatalf("prefix: got %q", addr.Prefix())
	}
	if len(addr.Bytes()) != AddressLength {
		t.Fatalf("length: got %d", len(addr.Bytes()))
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address().String() != addr.String() {
		t.Fatalf("restored key derives a different address")
	}
}
