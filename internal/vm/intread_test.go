package vm

import (
	"testing"

	"github.com/kienanstewart/yactfr/metadata"
)

func TestReadBitsByteAlignedFastPath(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56, 0x78}
	v, err := readBits(buf, 0, 32, metadata.BigEndian, false)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x12345678 {
		t.Fatalf("got %#x", v)
	}

	v, err = readBits(buf, 0, 32, metadata.LittleEndian, false)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x78563412 {
		t.Fatalf("got %#x", v)
	}
}

func TestReadBitsUnalignedMatchesByteAligned(t *testing.T) {
	buf := []byte{0xff, 0x00}
	v, err := readBits(buf, 0, 8, metadata.BigEndian, false)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xff {
		t.Fatalf("got %#x", v)
	}

	// An 8-bit read starting 4 bits in should read the bottom nibble of
	// byte 0 and top nibble of byte 1: 0xf0.
	v, err = readBits(buf, 4, 8, metadata.BigEndian, false)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xf0 {
		t.Fatalf("got %#x", v)
	}
}

func TestReadSignedIntSignExtends(t *testing.T) {
	buf := []byte{0xff} // -1 as an 8-bit two's complement value
	v, err := readSignedInt(buf, 0, 8, metadata.BigEndian, false)
	if err != nil {
		t.Fatal(err)
	}
	if v != -1 {
		t.Fatalf("got %d", v)
	}
}

func TestReadBitsRejectsOutOfBounds(t *testing.T) {
	buf := []byte{0x00}
	if _, err := readBits(buf, 0, 16, metadata.BigEndian, false); err == nil {
		t.Fatal("expected an error")
	}
}

func TestReadBitsReversedBitOrder(t *testing.T) {
	buf := []byte{0x01} // 0b00000001
	v, err := readBits(buf, 0, 8, metadata.BigEndian, false)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x01 {
		t.Fatalf("got %#x", v)
	}

	v, err = readBits(buf, 0, 8, metadata.BigEndian, true)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x80 {
		t.Fatalf("got %#x", v)
	}
}
