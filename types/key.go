// Package types holds the CORE data model shared by the trie store, the
// tracking copy, the runtime context and the executor: keys, URefs, stored
// values and the small set of domain structs (Account, Contract,
// ContractPackage, EntryPoint) that global state can hold.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// KeyTag identifies the variant of a Key. The tag is also the first byte of
// a Key's canonical serialization.
type KeyTag byte

const (
	KeyAccount KeyTag = iota
	KeyHash
	KeyURef
	KeyTransfer
	KeyDeployInfo
	KeyEraInfo
	KeyBalance
	KeyBid
	KeyWithdraw
	KeyDictionary
)

// Hash32 is a 32-byte content address: a blake2b digest, an account hash, a
// contract/package/wasm hash, or a dictionary address.
type Hash32 [32]byte

func (h Hash32) String() string { return fmt.Sprintf("%x", h[:]) }

// MarshalText / UnmarshalText let Hash32 serve as a JSON object key (used
// when StoredValue variants carry map[Hash32]... fields for trie storage).
func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

func (h *Hash32) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return fmt.Errorf("types: Hash32 must be 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// Key addresses a single cell of global state. Equality for lookup purposes
// ignores the access-rights bits carried on a URef variant (see Equal).
type Key struct {
	Tag  KeyTag
	Hash Hash32 // Account, Hash, Transfer, DeployInfo, Balance, Bid, Withdraw, Dictionary
	URef URef   // URef variant only
	Era  uint64 // EraInfo variant only
}

func NewAccountKey(h Hash32) Key     { return Key{Tag: KeyAccount, Hash: h} }
func NewHashKey(h Hash32) Key        { return Key{Tag: KeyHash, Hash: h} }
func NewTransferKey(h Hash32) Key    { return Key{Tag: KeyTransfer, Hash: h} }
func NewDeployInfoKey(h Hash32) Key  { return Key{Tag: KeyDeployInfo, Hash: h} }
func NewEraInfoKey(era uint64) Key   { return Key{Tag: KeyEraInfo, Era: era} }
func NewBalanceKey(urefAddr Hash32) Key {
	return Key{Tag: KeyBalance, Hash: urefAddr}
}
func NewBidKey(h Hash32) Key       { return Key{Tag: KeyBid, Hash: h} }
func NewWithdrawKey(h Hash32) Key  { return Key{Tag: KeyWithdraw, Hash: h} }
func NewDictionaryKey(h Hash32) Key { return Key{Tag: KeyDictionary, Hash: h} }
func NewURefKey(u URef) Key        { return Key{Tag: KeyURef, URef: u} }

// Equal compares two keys for lookup purposes: URef access-rights bits are
// ignored, per spec.
func (k Key) Equal(other Key) bool {
	if k.Tag != other.Tag {
		return false
	}
	switch k.Tag {
	case KeyURef:
		return k.URef.Addr == other.URef.Addr
	case KeyEraInfo:
		return k.Era == other.Era
	default:
		return k.Hash == other.Hash
	}
}

// Bytes returns the canonical serialization of the key: tag byte followed by
// the variant payload. Lookup equality (Equal) ignores URef rights bits, but
// the byte form is still unique per (tag, address) pair since it is used as
// the trie's addressing scheme, not as a cache key.
func (k Key) Bytes() []byte {
	switch k.Tag {
	case KeyURef:
		out := make([]byte, 1+32)
		out[0] = byte(k.Tag)
		copy(out[1:], k.URef.Addr[:])
		return out
	case KeyEraInfo:
		out := make([]byte, 1+8)
		out[0] = byte(k.Tag)
		binary.BigEndian.PutUint64(out[1:], k.Era)
		return out
	default:
		out := make([]byte, 1+32)
		out[0] = byte(k.Tag)
		copy(out[1:], k.Hash[:])
		return out
	}
}

// CacheKey returns a string suitable for use as a map key that honors Equal's
// access-rights-agnostic comparison (URef variants drop their rights bits).
func (k Key) CacheKey() string {
	switch k.Tag {
	case KeyURef:
		return fmt.Sprintf("%d:%x", k.Tag, k.URef.Addr[:])
	case KeyEraInfo:
		return fmt.Sprintf("%d:%d", k.Tag, k.Era)
	default:
		return fmt.Sprintf("%d:%x", k.Tag, k.Hash[:])
	}
}

func (k Key) String() string { return k.CacheKey() }
