package trie

import (
	"fmt"

	"go.etcd.io/bbolt"

	"synnergy-core/types"
)

// nodesBucket holds every trie node ever written, addressed by its Digest.
// Nodes are content-addressed and immutable, so the bucket only grows; a
// commit never overwrites an existing entry, it only adds the nodes created
// by that commit's new root path (spec §4.3's "commit never mutates
// existing nodes" invariant).
var nodesBucket = []byte("trie_nodes")

// rootsBucket records every root Digest produced by a commit, so
// Store.HasRoot can reject an unknown root without
// walking the trie.
var rootsBucket = []byte("trie_roots")

// Store is the durable, bbolt-backed Merkle trie described in spec §4: a
// single embedded KV file holding every historical node, addressed by
// content hash, with one root-hash per global-state version.
//
// bbolt's single-writer-at-a-time transaction model is used directly as the
// "one atomic write transaction per commit" requirement: Commit runs inside
// exactly one db.Update call.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if absent) the bbolt file at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("trie: open store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(nodesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(rootsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("trie: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// putNode persists a single node blob under its Digest, inside tx.
func putNode(tx *bbolt.Tx, d Digest, blob []byte) error {
	return tx.Bucket(nodesBucket).Put(d[:], blob)
}

func getNode(tx *bbolt.Tx, d Digest) ([]byte, bool) {
	b := tx.Bucket(nodesBucket).Get(d[:])
	if b == nil {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

// HasRoot reports whether root has ever been recorded by Commit.
func (s *Store) HasRoot(root Digest) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(rootsBucket).Get(root[:]) != nil
		return nil
	})
	return found, err
}

// Read resolves key against the trie rooted at root, descending the radix
// structure one nibble-byte at a time through Extension and Node blobs until
// it reaches a Leaf (or a nil pointer, meaning not-found).
func (s *Store) Read(root Digest, key types.Key) (types.StoredValue, bool, error) {
	var (
		val   types.StoredValue
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		if root.IsZero() {
			return nil
		}
		if tx.Bucket(rootsBucket).Get(root[:]) == nil {
			return types.NewTrieError(types.TrieRootNotFound, fmt.Sprintf("trie: unknown root %s", root))
		}
		path := key.Bytes()
		cur := root
		depth := 0
		for {
			blob, ok := getNode(tx, cur)
			if !ok {
				return nil
			}
			node, err := DecodeNode(blob)
			if err != nil {
				return err
			}
			switch node.Tag {
			case TagLeaf:
				if node.Key.Equal(key) {
					val, found = node.Value, true
				}
				return nil
			case TagExtension:
				if !matchesAffix(path[depth:], node.Affix) {
					return nil
				}
				depth += len(node.Affix)
				cur = node.Pointer
			case TagNode:
				if depth >= len(path) {
					return nil
				}
				next := node.Pointers[path[depth]]
				if next.IsZero() {
					return nil
				}
				cur = next
				depth++
			default:
				return fmt.Errorf("trie: unknown node tag %d", node.Tag)
			}
			if cur.IsZero() {
				return nil
			}
		}
	})
	return val, found, err
}

func matchesAffix(remaining, affix []byte) bool {
	if len(remaining) < len(affix) {
		return false
	}
	for i := range affix {
		if remaining[i] != affix[i] {
			return false
		}
	}
	return true
}

// Checkout returns the node blob at root for read-only inspection by the
// scratch overlay (used when a tracking copy needs to read-through to a node
// that hasn't been touched yet in the current commit's scratch buffer).
func (s *Store) Checkout(d Digest) ([]byte, bool, error) {
	var (
		blob  []byte
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, ok := getNode(tx, d)
		if ok {
			blob, found = b, true
		}
		return nil
	})
	return blob, found, err
}

// persistNodes writes every node in scratch (produced by building a new
// trie path over some preRoot with a batch of key/value writes) and
// records newRoot as a valid root, all inside a single bbolt write
// transaction — the write is atomic: either every node and the new root
// land, or none do. See Commit for the higher-level, transform-resolving
// entry point used by callers.
func (s *Store) persistNodes(newRoot Digest, scratch map[Digest][]byte) (Digest, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for d, blob := range scratch {
			if err := putNode(tx, d, blob); err != nil {
				return err
			}
		}
		return tx.Bucket(rootsBucket).Put(newRoot[:], []byte{1})
	})
	if err != nil {
		return Digest{}, types.NewTrieError(types.TrieTransformError, err.Error())
	}
	return newRoot, nil
}
