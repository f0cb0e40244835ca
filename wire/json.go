// Package wire implements the two proof serializations of spec §4.7: a
// JSON shape for tooling/debugging, and a CBOR shape (tags 121/122/123)
// matching the historical framing quirks of the on-chain decoder.
package wire

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
	"github.com/aiken-lang/merkle-patricia-forestry/proof"
)

// jsonStep mirrors the §4.7 JSON shape: {type, skip, neighbors|neighbor}.
type jsonStep struct {
	Type      string        `json:"type"`
	Skip      int           `json:"skip"`
	Neighbors string        `json:"neighbors,omitempty"`
	Neighbor  *jsonNeighbor `json:"neighbor,omitempty"`
}

type jsonNeighbor struct {
	Nibble int    `json:"nibble,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Root   string `json:"root,omitempty"`
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`
}

// MarshalJSON encodes a Proof per spec §4.7.
func MarshalJSON(p proof.Proof) ([]byte, error) {
	out := make([]jsonStep, len(p))
	for i, s := range p {
		switch s.Kind {
		case proof.KindBranch:
			var buf [128]byte
			for j, n := range s.Neighbors {
				copy(buf[j*32:(j+1)*32], n[:])
			}
			out[i] = jsonStep{Type: "branch", Skip: s.Skip, Neighbors: hex.EncodeToString(buf[:])}

		case proof.KindFork:
			out[i] = jsonStep{Type: "fork", Skip: s.Skip, Neighbor: &jsonNeighbor{
				Nibble: s.Fork.Nibble,
				Prefix: hex.EncodeToString(s.Fork.Prefix),
				Root:   hex.EncodeToString(s.Fork.Root[:]),
			}}

		case proof.KindLeaf:
			out[i] = jsonStep{Type: "leaf", Skip: s.Skip, Neighbor: &jsonNeighbor{
				Key:   hex.EncodeToString(s.Leaf.Path[:]),
				Value: hex.EncodeToString(s.Leaf.ValueDigest[:]),
			}}

		default:
			return nil, fmt.Errorf("wire: unknown step kind %v", s.Kind)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a Proof previously produced by MarshalJSON.
func UnmarshalJSON(data []byte) (proof.Proof, error) {
	var raw []jsonStep
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(proof.Proof, len(raw))
	for i, s := range raw {
		switch s.Type {
		case "branch":
			buf, err := hex.DecodeString(s.Neighbors)
			if err != nil {
				return nil, err
			}
			if len(buf) != 128 {
				return nil, fmt.Errorf("wire: branch step %d: want 128 bytes of neighbors, got %d", i, len(buf))
			}
			var neighbors [4]hashutil.Hash
			for j := range neighbors {
				copy(neighbors[j][:], buf[j*32:(j+1)*32])
			}
			out[i] = proof.NewBranchStep(s.Skip, neighbors)

		case "fork":
			if s.Neighbor == nil {
				return nil, fmt.Errorf("wire: fork step %d: missing neighbor", i)
			}
			prefix, err := hex.DecodeString(s.Neighbor.Prefix)
			if err != nil {
				return nil, err
			}
			rootBytes, err := hex.DecodeString(s.Neighbor.Root)
			if err != nil {
				return nil, err
			}
			var root hashutil.Hash
			copy(root[:], rootBytes)
			out[i] = proof.NewForkStep(s.Skip, s.Neighbor.Nibble, prefix, root)

		case "leaf":
			if s.Neighbor == nil {
				return nil, fmt.Errorf("wire: leaf step %d: missing neighbor", i)
			}
			keyBytes, err := hex.DecodeString(s.Neighbor.Key)
			if err != nil {
				return nil, err
			}
			valueBytes, err := hex.DecodeString(s.Neighbor.Value)
			if err != nil {
				return nil, err
			}
			var path, digest hashutil.Hash
			copy(path[:], keyBytes)
			copy(digest[:], valueBytes)
			out[i] = proof.NewLeafStep(s.Skip, path, digest)

		default:
			return nil, fmt.Errorf("wire: unknown step type %q at index %d", s.Type, i)
		}
	}
	return out, nil
}
