// Package nibble converts keys into the 64-nibble paths the trie routes on,
// and implements the odd/even suffix encoding used when hashing a Leaf.
//
// A Path is kept as a plain 32-byte hash (the blake2b-256 digest of a key);
// nibbles are extracted on demand rather than expanded into a 64-byte
// buffer, mirroring the teacher's keyToNibbles/nibblesToKey pair in
// mpt.go but without paying for the expansion on every lookup.
package nibble

import "github.com/aiken-lang/merkle-patricia-forestry/hashutil"

// Path is the 32-byte blake2b-256 digest of a key, interpreted as 64
// hexadecimal nibbles.
type Path = hashutil.Hash

// PathOf hashes a key into its 64-nibble path.
func PathOf(key []byte) Path {
	return hashutil.H(key)
}

// Len is the number of nibbles in a Path.
const Len = 64

// At returns the nibble (0..15) at position i (0..63) of the path.
func At(p Path, i int) byte {
	b := p[i/2]
	if i%2 == 0 {
		return b >> 4
	}
	return b & 0x0F
}

// Slice returns one nibble per byte, values in 0..15, for path[a:b).
func Slice(p Path, a, b int) []byte {
	out := make([]byte, 0, b-a)
	for i := a; i < b; i++ {
		out = append(out, At(p, i))
	}
	return out
}

// CommonPrefixLen returns the number of leading nibbles shared by p and q,
// starting at cursor, up to the full remaining path length.
func CommonPrefixLen(p, q Path, cursor int) int {
	n := 0
	for cursor+n < Len && At(p, cursor+n) == At(q, cursor+n) {
		n++
	}
	return n
}

// SuffixEncode produces the byte encoding used inside Leaf hashing for the
// remaining path from cursor onward (spec §4.1):
//
//   - even cursor: 0xFF, then the remaining whole bytes from cursor/2.
//   - odd cursor: 0x00, then a byte holding the single nibble at cursor,
//     then the remaining whole bytes from (cursor+1)/2.
//
// This tag is how the format disambiguates parity without carrying a
// separate suffix-length field.
func SuffixEncode(p Path, cursor int) []byte {
	if cursor%2 == 0 {
		out := make([]byte, 0, 1+len(p)-cursor/2)
		out = append(out, 0xFF)
		out = append(out, p[cursor/2:]...)
		return out
	}
	out := make([]byte, 0, 2+len(p)-(cursor+1)/2)
	out = append(out, 0x00, At(p, cursor))
	out = append(out, p[(cursor+1)/2:]...)
	return out
}

// NibblesToBytes packs a nibble string (one nibble per byte, LSB meaning)
// back into a byte buffer, padding a trailing odd nibble with zero. Branch
// prefixes are kept and hashed one nibble per byte; they never pass
// through this packed form.
func NibblesToBytes(nibbles []byte) []byte {
	padded := nibbles
	if len(padded)%2 != 0 {
		padded = append(append([]byte{}, padded...), 0)
	}
	out := make([]byte, len(padded)/2)
	for i := range out {
		out[i] = padded[2*i]<<4 | padded[2*i+1]
	}
	return out
}
