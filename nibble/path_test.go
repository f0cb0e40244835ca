package nibble

import (
	"bytes"
	"testing"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
)

func TestPathOfIsDeterministic(t *testing.T) {
	a := PathOf([]byte("apple"))
	b := PathOf([]byte("apple"))
	if a != b {
		t.Fatalf("PathOf not deterministic")
	}
}

func TestAtMatchesManualNibbleExtraction(t *testing.T) {
	p := PathOf([]byte("banana"))
	for i := 0; i < Len; i++ {
		b := p[i/2]
		var want byte
		if i%2 == 0 {
			want = b >> 4
		} else {
			want = b & 0x0F
		}
		if got := At(p, i); got != want {
			t.Fatalf("At(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestSliceLength(t *testing.T) {
	p := PathOf([]byte("cherry"))
	s := Slice(p, 4, 10)
	if len(s) != 6 {
		t.Fatalf("Slice length = %d, want 6", len(s))
	}
	for i, v := range s {
		if v != At(p, 4+i) {
			t.Fatalf("Slice[%d] = %d, want %d", i, v, At(p, 4+i))
		}
	}
}

func TestCommonPrefixLen(t *testing.T) {
	cases := []struct {
		name   string
		p, q   hashutil.Hash
		cursor int
		want   int
	}{
		{"identical", PathOf([]byte("x")), PathOf([]byte("x")), 0, Len},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CommonPrefixLen(c.p, c.q, c.cursor); got != c.want {
				t.Fatalf("CommonPrefixLen = %d, want %d", got, c.want)
			}
		})
	}

	p := PathOf([]byte("kiwi"))
	q := p
	// Flip a nibble at position 40 to create a known divergence point.
	if At(q, 40) == 0 {
		q[20] = (q[20] &^ 0xF0) | 0x10
	} else {
		q[20] = q[20] &^ 0xF0
	}
	if got := CommonPrefixLen(p, q, 0); got != 40 {
		t.Fatalf("CommonPrefixLen with crafted divergence = %d, want 40", got)
	}
}

func TestSuffixEncodeParity(t *testing.T) {
	p := PathOf([]byte("durian"))

	even := SuffixEncode(p, 10)
	if even[0] != 0xFF {
		t.Fatalf("even cursor encoding should start with 0xFF, got %#x", even[0])
	}
	if !bytes.Equal(even[1:], p[5:]) {
		t.Fatalf("even cursor encoding should carry whole remaining bytes")
	}

	odd := SuffixEncode(p, 11)
	if odd[0] != 0x00 {
		t.Fatalf("odd cursor encoding should start with 0x00, got %#x", odd[0])
	}
	if odd[1] != At(p, 11) {
		t.Fatalf("odd cursor encoding second byte should be the lone nibble")
	}
	if !bytes.Equal(odd[2:], p[6:]) {
		t.Fatalf("odd cursor encoding should carry remaining whole bytes after the lone nibble")
	}
}

func TestNibblesToBytesRoundTrip(t *testing.T) {
	nibbles := []byte{0x1, 0x2, 0x3, 0x4}
	got := NibblesToBytes(nibbles)
	want := []byte{0x12, 0x34}
	if !bytes.Equal(got, want) {
		t.Fatalf("NibblesToBytes(%v) = %v, want %v", nibbles, got, want)
	}
}

func TestNibblesToBytesPadsOddLength(t *testing.T) {
	nibbles := []byte{0xA, 0xB, 0xC}
	got := NibblesToBytes(nibbles)
	want := []byte{0xAB, 0xC0}
	if !bytes.Equal(got, want) {
		t.Fatalf("NibblesToBytes(%v) = %v, want %v", nibbles, got, want)
	}
}
