package node

import (
	"encoding/binary"
	"errors"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
)

// ErrMalformed is returned by Decode when a stored blob isn't a valid
// encoded node.
var ErrMalformed = errors.New("node: malformed encoding")

const (
	tagEmpty  byte = 0
	tagLeaf   byte = 1
	tagBranch byte = 2
)

// Encode serializes a node to the content-addressed blob stored under its
// hash in a Store. Branch children are always stored as hash handles:
// resolving them to concrete nodes is the Store-aware caller's job
// (package trie), keeping this package free of any Store dependency.
func (n *Node) Encode() []byte {
	switch n.kind {
	case KindEmpty:
		return []byte{tagEmpty}

	case KindLeaf:
		buf := make([]byte, 0, 1+32+2+4+len(n.key)+4+len(n.value))
		buf = append(buf, tagLeaf)
		buf = append(buf, n.path[:]...)
		buf = appendUint16(buf, uint16(n.cursor))
		buf = appendUint32(buf, uint32(len(n.key)))
		buf = append(buf, n.key...)
		buf = appendUint32(buf, uint32(len(n.value)))
		buf = append(buf, n.value...)
		return buf

	case KindBranch:
		buf := make([]byte, 0, 1+2+len(n.prefix)+16*33)
		buf = append(buf, tagBranch)
		buf = appendUint16(buf, uint16(len(n.prefix)))
		buf = append(buf, n.prefix...)
		for _, c := range n.children {
			if c.IsEmpty() {
				buf = append(buf, 0)
				continue
			}
			buf = append(buf, 1)
			h := c.Hash()
			buf = append(buf, h[:]...)
		}
		return buf

	default:
		panic("node: unknown kind")
	}
}

// Decode reconstructs a node from a blob previously produced by Encode.
// Branch children come back as Hash refs (FromHash), not yet resolved.
func Decode(blob []byte) (*Node, error) {
	if len(blob) == 0 {
		return nil, ErrMalformed
	}
	switch blob[0] {
	case tagEmpty:
		return Empty(), nil

	case tagLeaf:
		if len(blob) < 1+32+2+4 {
			return nil, ErrMalformed
		}
		off := 1
		var path hashutil.Hash
		copy(path[:], blob[off:off+32])
		off += 32
		cursor := int(binary.BigEndian.Uint16(blob[off : off+2]))
		off += 2
		keyLen := int(binary.BigEndian.Uint32(blob[off : off+4]))
		off += 4
		if len(blob) < off+keyLen+4 {
			return nil, ErrMalformed
		}
		key := blob[off : off+keyLen]
		off += keyLen
		valueLen := int(binary.BigEndian.Uint32(blob[off : off+4]))
		off += 4
		if len(blob) < off+valueLen {
			return nil, ErrMalformed
		}
		value := blob[off : off+valueLen]
		return NewLeaf(path, cursor, key, value), nil

	case tagBranch:
		if len(blob) < 1+2 {
			return nil, ErrMalformed
		}
		off := 1
		prefixLen := int(binary.BigEndian.Uint16(blob[off : off+2]))
		off += 2
		if len(blob) < off+prefixLen {
			return nil, ErrMalformed
		}
		prefix := blob[off : off+prefixLen]
		off += prefixLen

		var children [16]Ref
		for i := 0; i < 16; i++ {
			if off >= len(blob) {
				return nil, ErrMalformed
			}
			flag := blob[off]
			off++
			if flag == 0 {
				continue
			}
			if len(blob) < off+32 {
				return nil, ErrMalformed
			}
			var h hashutil.Hash
			copy(h[:], blob[off:off+32])
			off += 32
			children[i] = FromHash(h)
		}
		return NewBranch(prefix, children), nil

	default:
		return nil, ErrMalformed
	}
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
