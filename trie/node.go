// Package trie implements the persistent, content-addressed Merkle trie of
// {Key -> StoredValue} described in spec §4.1, backed by go.etcd.io/bbolt —
// the same single-writer, copy-on-write transaction model as the LMDB/MDBX
// stores used elsewhere in the retrieved example pack.
package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"

	"synnergy-core/types"
)

// NodeTag identifies which of the three trie node shapes a blob holds.
type NodeTag byte

const (
	TagLeaf NodeTag = iota
	TagNode
	TagExtension
)

// Digest is a content-address: blake2b-256 of a node's canonical encoding.
type Digest [32]byte

func (d Digest) String() string { return fmt.Sprintf("%x", d[:]) }
func (d Digest) IsZero() bool   { return d == Digest{} }

// Leaf holds a single Key/StoredValue pair.
type leafRLP struct {
	KeyBytes   []byte
	ValueBytes []byte
}

// Node is a radix branch with up to 256 child pointers, one per first
// nibble-byte of the remaining key space.
type nodeRLP struct {
	Pointers [][]byte // 256 entries; empty slice means "no child"
}

// Extension collapses a run of single-child Nodes into one affix + pointer.
type extensionRLP struct {
	Affix   []byte
	Pointer []byte
}

// Node is the in-memory representation of one trie node, tagged by kind.
type Node struct {
	Tag NodeTag

	// Leaf
	Key   types.Key
	Value types.StoredValue

	// Node (branch)
	Pointers [256]Digest

	// Extension
	Affix   []byte
	Pointer Digest
}

// LeafNode constructs a Leaf.
func LeafNode(key types.Key, value types.StoredValue) *Node {
	return &Node{Tag: TagLeaf, Key: key, Value: value}
}

// BranchNode constructs an empty 256-way Node.
func BranchNode() *Node { return &Node{Tag: TagNode} }

// ExtensionNode constructs an Extension over the given affix and child.
func ExtensionNode(affix []byte, child Digest) *Node {
	return &Node{Tag: TagExtension, Affix: append([]byte(nil), affix...), Pointer: child}
}

// Encode produces the canonical byte encoding used both for hashing and for
// durable storage: a tag byte followed by the RLP encoding of the node's
// payload.
func (n *Node) Encode() ([]byte, error) {
	var payload interface{}
	switch n.Tag {
	case TagLeaf:
		valBytes, err := encodeStoredValue(n.Value)
		if err != nil {
			return nil, err
		}
		payload = leafRLP{KeyBytes: n.Key.Bytes(), ValueBytes: valBytes}
	case TagNode:
		ptrs := make([][]byte, 256)
		for i, p := range n.Pointers {
			if !p.IsZero() {
				cp := p
				ptrs[i] = cp[:]
			} else {
				ptrs[i] = []byte{}
			}
		}
		payload = nodeRLP{Pointers: ptrs}
	case TagExtension:
		payload = extensionRLP{Affix: n.Affix, Pointer: n.Pointer[:]}
	default:
		return nil, fmt.Errorf("trie: unknown node tag %d", n.Tag)
	}
	enc, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(enc)+1)
	out = append(out, byte(n.Tag))
	out = append(out, enc...)
	return out, nil
}

// Hash returns the content address of the node: blake2b-256 of Encode().
func (n *Node) Hash() (Digest, error) {
	enc, err := n.Encode()
	if err != nil {
		return Digest{}, err
	}
	return Digest(blake2b.Sum256(enc)), nil
}

// DecodeNode parses a blob previously produced by Encode.
func DecodeNode(blob []byte) (*Node, error) {
	if len(blob) < 1 {
		return nil, fmt.Errorf("trie: empty node blob")
	}
	tag := NodeTag(blob[0])
	rest := blob[1:]
	switch tag {
	case TagLeaf:
		var l leafRLP
		if err := rlp.DecodeBytes(rest, &l); err != nil {
			return nil, err
		}
		key, err := decodeKey(l.KeyBytes)
		if err != nil {
			return nil, err
		}
		val, err := decodeStoredValue(l.ValueBytes)
		if err != nil {
			return nil, err
		}
		return &Node{Tag: TagLeaf, Key: key, Value: val}, nil
	case TagNode:
		var nd nodeRLP
		if err := rlp.DecodeBytes(rest, &nd); err != nil {
			return nil, err
		}
		out := &Node{Tag: TagNode}
		for i, p := range nd.Pointers {
			if len(p) == 32 {
				copy(out.Pointers[i][:], p)
			}
		}
		return out, nil
	case TagExtension:
		var ext extensionRLP
		if err := rlp.DecodeBytes(rest, &ext); err != nil {
			return nil, err
		}
		out := &Node{Tag: TagExtension, Affix: ext.Affix}
		copy(out.Pointer[:], ext.Pointer)
		return out, nil
	default:
		return nil, fmt.Errorf("trie: unknown node tag %d", tag)
	}
}

func decodeKey(b []byte) (types.Key, error) {
	if len(b) < 1 {
		return types.Key{}, fmt.Errorf("trie: empty key bytes")
	}
	tag := types.KeyTag(b[0])
	rest := b[1:]
	switch tag {
	case types.KeyURef:
		if len(rest) < 32 {
			return types.Key{}, fmt.Errorf("trie: short uref key")
		}
		var addr types.Hash32
		copy(addr[:], rest[:32])
		return types.Key{Tag: tag, URef: types.URef{Addr: addr}}, nil
	case types.KeyEraInfo:
		if len(rest) < 8 {
			return types.Key{}, fmt.Errorf("trie: short era key")
		}
		var era uint64
		for _, c := range rest[:8] {
			era = era<<8 | uint64(c)
		}
		return types.Key{Tag: tag, Era: era}, nil
	default:
		if len(rest) < 32 {
			return types.Key{}, fmt.Errorf("trie: short key")
		}
		var h types.Hash32
		copy(h[:], rest[:32])
		return types.Key{Tag: tag, Hash: h}, nil
	}
}

// encodeStoredValue / decodeStoredValue delegate to the encoding/json codec
// in storedvalue_codec.go (not RLP) because StoredValue's union carries
// nested maps keyed by strings/Hash32 that vary per variant; RLP round-trips
// the node envelope above (where the shape is fixed). The host ABI's tagged
// byte layout (exec/serialize.go) is a separate format.
func encodeStoredValue(v types.StoredValue) ([]byte, error) {
	return marshalStoredValue(v)
}

func decodeStoredValue(b []byte) (types.StoredValue, error) {
	return unmarshalStoredValue(b)
}
