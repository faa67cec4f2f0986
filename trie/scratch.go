package trie

import (
	"fmt"

	"synnergy-core/types"
)

// Scratch is an in-memory overlay over a Store: new nodes produced while
// applying a batch of writes are buffered here, keyed by content hash,
// before a single call to Store.Commit flushes them all inside one bbolt
// write transaction. Because every node is built bottom-up (a parent's
// Encode needs its children's digests first), the buffer is naturally
// populated in post-order — children always land before the parents that
// reference them — so flushing the map in any order is safe.
type Scratch struct {
	store *Store
	nodes map[Digest][]byte
}

// NewScratch opens a scratch overlay for building a new trie version on top
// of store's existing nodes.
func NewScratch(store *Store) *Scratch {
	return &Scratch{store: store, nodes: make(map[Digest][]byte)}
}

func (s *Scratch) getNode(d Digest) (*Node, error) {
	if blob, ok := s.nodes[d]; ok {
		return DecodeNode(blob)
	}
	blob, ok, err := s.store.Checkout(d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("trie: dangling node pointer %s", d)
	}
	return DecodeNode(blob)
}

func (s *Scratch) putNode(n *Node) (Digest, error) {
	blob, err := n.Encode()
	if err != nil {
		return Digest{}, err
	}
	d, err := n.Hash()
	if err != nil {
		return Digest{}, err
	}
	s.nodes[d] = blob
	return d, nil
}

// Put inserts or overwrites key -> value in the trie rooted at root and
// returns the digest of the new root. root may be the zero Digest for an
// empty trie.
func (s *Scratch) Put(root Digest, key types.Key, value types.StoredValue) (Digest, error) {
	leaf := LeafNode(key, value)
	path := key.Bytes()
	if root.IsZero() {
		return s.putNode(leaf)
	}
	return s.insert(root, 0, path, leaf)
}

func (s *Scratch) insert(cur Digest, depth int, path []byte, leaf *Node) (Digest, error) {
	node, err := s.getNode(cur)
	if err != nil {
		return Digest{}, err
	}
	switch node.Tag {
	case TagLeaf:
		if node.Key.Equal(leaf.Key) {
			return s.putNode(leaf)
		}
		return s.splitLeaf(node, depth, path, leaf)
	case TagNode:
		if depth >= len(path) {
			return Digest{}, fmt.Errorf("trie: key path exhausted at branch depth %d", depth)
		}
		idx := path[depth]
		child := node.Pointers[idx]
		var newChild Digest
		if child.IsZero() {
			newChild, err = s.putNode(leaf)
		} else {
			newChild, err = s.insert(child, depth+1, path, leaf)
		}
		if err != nil {
			return Digest{}, err
		}
		updated := *node
		updated.Pointers[idx] = newChild
		return s.putNode(&updated)
	case TagExtension:
		affix := node.Affix
		rest := path[depth:]
		if matchesAffix(rest, affix) {
			newChild, err := s.insert(node.Pointer, depth+len(affix), path, leaf)
			if err != nil {
				return Digest{}, err
			}
			return s.putNode(ExtensionNode(affix, newChild))
		}
		return s.splitExtension(node, depth, path, leaf)
	default:
		return Digest{}, fmt.Errorf("trie: unknown node tag %d", node.Tag)
	}
}

// splitLeaf handles inserting leaf where descent reached an existing,
// distinct Leaf: the two keys diverge somewhere at or after depth, so a new
// branch (optionally wrapped in a compressing Extension over their shared
// prefix) replaces the old leaf's slot.
func (s *Scratch) splitLeaf(oldLeaf *Node, depth int, path []byte, leaf *Node) (Digest, error) {
	oldPath := oldLeaf.Key.Bytes()
	common := commonPrefixLen(oldPath[depth:], path[depth:])

	oldDigest, err := s.putNode(oldLeaf)
	if err != nil {
		return Digest{}, err
	}
	newDigest, err := s.putNode(leaf)
	if err != nil {
		return Digest{}, err
	}

	branch := BranchNode()
	branch.Pointers[oldPath[depth+common]] = oldDigest
	branch.Pointers[path[depth+common]] = newDigest
	branchDigest, err := s.putNode(branch)
	if err != nil {
		return Digest{}, err
	}
	if common == 0 {
		return branchDigest, nil
	}
	return s.putNode(ExtensionNode(path[depth:depth+common], branchDigest))
}

// splitExtension handles inserting leaf where descent reached an Extension
// whose affix diverges from the new key partway through.
func (s *Scratch) splitExtension(ext *Node, depth int, path []byte, leaf *Node) (Digest, error) {
	rest := path[depth:]
	common := commonPrefixLen(ext.Affix, rest)

	var oldBranchChild Digest
	if common+1 < len(ext.Affix) {
		sub, err := s.putNode(ExtensionNode(ext.Affix[common+1:], ext.Pointer))
		if err != nil {
			return Digest{}, err
		}
		oldBranchChild = sub
	} else {
		oldBranchChild = ext.Pointer
	}

	newDigest, err := s.putNode(leaf)
	if err != nil {
		return Digest{}, err
	}

	branch := BranchNode()
	branch.Pointers[ext.Affix[common]] = oldBranchChild
	branch.Pointers[rest[common]] = newDigest
	branchDigest, err := s.putNode(branch)
	if err != nil {
		return Digest{}, err
	}
	if common == 0 {
		return branchDigest, nil
	}
	return s.putNode(ExtensionNode(ext.Affix[:common], branchDigest))
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Flush writes every buffered node plus newRoot to the backing store inside
// one atomic transaction.
func (s *Scratch) Flush(newRoot Digest) (Digest, error) {
	return s.store.persistNodes(newRoot, s.nodes)
}
