package wire

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
	"github.com/aiken-lang/merkle-patricia-forestry/proof"
)

// Tag numbers for the three step shapes (spec §4.7).
const (
	tagBranch = 121
	tagFork   = 122
	tagLeaf   = 123
)

// branchFields, forkFields and leafFields use fxamacker/cbor's ",toarray"
// struct tag to map positionally onto a definite-length CBOR array, in
// the same field order as the JSON shape (spec §4.7).
type branchFields struct {
	_         struct{} `cbor:",toarray"`
	Skip      uint64
	Neighbors []byte
}

type forkFields struct {
	_      struct{} `cbor:",toarray"`
	Skip   uint64
	Nibble uint64
	Prefix []byte
	Root   []byte
}

type leafFields struct {
	_     struct{} `cbor:",toarray"`
	Skip  uint64
	Key   []byte
	Value []byte
}

// MarshalCBOR encodes a proof as an indefinite-length list of tagged
// steps (spec §4.7). A Branch step's neighbors are additionally split
// into two 64-byte chunks of an indefinite-length byte string, preserving
// a historical framing quirk some on-chain decoders still expect.
func MarshalCBOR(p proof.Proof) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(0x9f) // array, indefinite length
	for i, s := range p {
		stepBytes, err := marshalStepCBOR(s)
		if err != nil {
			return nil, fmt.Errorf("wire: step %d: %w", i, err)
		}
		buf.Write(stepBytes)
	}
	buf.WriteByte(0xff) // break
	return buf.Bytes(), nil
}

func marshalStepCBOR(s proof.Step) ([]byte, error) {
	switch s.Kind {
	case proof.KindBranch:
		var flat [128]byte
		for i, n := range s.Neighbors {
			copy(flat[i*32:(i+1)*32], n[:])
		}
		chunk1, err := cbor.Marshal(flat[:64])
		if err != nil {
			return nil, err
		}
		chunk2, err := cbor.Marshal(flat[64:])
		if err != nil {
			return nil, err
		}
		skip, err := cbor.Marshal(s.Skip)
		if err != nil {
			return nil, err
		}
		var inner bytes.Buffer
		inner.WriteByte(0x82) // array(2): [skip, neighbors]
		inner.Write(skip)
		inner.WriteByte(0x5f) // byte string, indefinite length
		inner.Write(chunk1)
		inner.Write(chunk2)
		inner.WriteByte(0xff)
		return wrapTag(tagBranch, inner.Bytes())

	case proof.KindFork:
		content, err := cbor.Marshal(forkFields{
			Skip:   uint64(s.Skip),
			Nibble: uint64(s.Fork.Nibble),
			Prefix: s.Fork.Prefix,
			Root:   s.Fork.Root[:],
		})
		if err != nil {
			return nil, err
		}
		return wrapTag(tagFork, content)

	case proof.KindLeaf:
		content, err := cbor.Marshal(leafFields{
			Skip:  uint64(s.Skip),
			Key:   s.Leaf.Path[:],
			Value: s.Leaf.ValueDigest[:],
		})
		if err != nil {
			return nil, err
		}
		return wrapTag(tagLeaf, content)

	default:
		return nil, fmt.Errorf("wire: unknown step kind %v", s.Kind)
	}
}

func wrapTag(number uint64, content []byte) ([]byte, error) {
	return cbor.Marshal(cbor.RawTag{Number: number, Content: cbor.RawMessage(content)})
}

// UnmarshalCBOR decodes a proof previously produced by MarshalCBOR. The
// underlying library transparently concatenates indefinite-length
// arrays and chunked byte strings, so decoding needs no manual framing
// logic of its own.
func UnmarshalCBOR(data []byte) (proof.Proof, error) {
	var rawSteps []cbor.RawTag
	if err := cbor.Unmarshal(data, &rawSteps); err != nil {
		return nil, err
	}

	out := make(proof.Proof, len(rawSteps))
	for i, rt := range rawSteps {
		switch rt.Number {
		case tagBranch:
			var bf branchFields
			if err := cbor.Unmarshal(rt.Content, &bf); err != nil {
				return nil, fmt.Errorf("wire: step %d: %w", i, err)
			}
			if len(bf.Neighbors) != 128 {
				return nil, fmt.Errorf("wire: step %d: want 128 bytes of neighbors, got %d", i, len(bf.Neighbors))
			}
			var neighbors [4]hashutil.Hash
			for j := range neighbors {
				copy(neighbors[j][:], bf.Neighbors[j*32:(j+1)*32])
			}
			out[i] = proof.NewBranchStep(int(bf.Skip), neighbors)

		case tagFork:
			var ff forkFields
			if err := cbor.Unmarshal(rt.Content, &ff); err != nil {
				return nil, fmt.Errorf("wire: step %d: %w", i, err)
			}
			var root hashutil.Hash
			copy(root[:], ff.Root)
			out[i] = proof.NewForkStep(int(ff.Skip), int(ff.Nibble), ff.Prefix, root)

		case tagLeaf:
			var lf leafFields
			if err := cbor.Unmarshal(rt.Content, &lf); err != nil {
				return nil, fmt.Errorf("wire: step %d: %w", i, err)
			}
			var path, digest hashutil.Hash
			copy(path[:], lf.Key)
			copy(digest[:], lf.Value)
			out[i] = proof.NewLeafStep(int(lf.Skip), path, digest)

		default:
			return nil, fmt.Errorf("wire: step %d: unknown tag %d", i, rt.Number)
		}
	}
	return out, nil
}
