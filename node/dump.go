package node

import (
	"encoding/hex"
	"fmt"
	"io"
)

// Dump recursively prints the node structure for debugging, in the style
// of the teacher's mpt.PrintTrie: one indented line per node, descending
// into children.
func (n *Node) Dump(w io.Writer, indent string) {
	if n == nil {
		fmt.Fprintln(w, indent+"nil")
		return
	}
	switch n.kind {
	case KindEmpty:
		fmt.Fprintln(w, indent+"Empty")
	case KindLeaf:
		fmt.Fprintf(w, "%sLeaf: key=%s value=%s hash=%s\n",
			indent, hex.EncodeToString(n.key), hex.EncodeToString(n.value), n.Hash().Hex())
	case KindBranch:
		fmt.Fprintf(w, "%sBranch: prefix=%s hash=%s\n", indent, hex.EncodeToString(n.prefix), n.Hash().Hex())
		for i, c := range n.children {
			if c.IsEmpty() {
				continue
			}
			if child := c.Node(); child != nil {
				fmt.Fprintf(w, "%s  [%x]:\n", indent, i)
				child.Dump(w, indent+"    ")
			} else {
				fmt.Fprintf(w, "%s  [%x]: <hash %s>\n", indent, i, c.Hash().Hex())
			}
		}
	}
}
