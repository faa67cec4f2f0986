// Package exec implements the runtime context, host-function ABI, contract
// call protocol, native system contracts, and top-level executor described
// in the engine's component design: everything that sits above the trie
// and tracking-copy layers and below the WASM engine abstraction.
package exec

import (
	"fmt"
	"math/big"
	"sync"

	"synnergy-core/state"
	"synnergy-core/types"
)

// EntryPointType distinguishes a Session frame (the account's own code,
// able to mutate the account's named keys) from a Contract frame (stored
// contract code, addressed by its own contract hash).
type EntryPointType byte

const (
	FrameSession EntryPointType = iota
	FrameContract
)

func (t EntryPointType) String() string {
	if t == FrameSession {
		return "session"
	}
	return "contract"
}

// RuntimeContext carries everything scoped to one active call frame (spec
// §4.4). Nested contract calls get their own RuntimeContext (via NewFromSelf)
// but share the tracking copy, address generator, remaining spending limit
// and authorization keys of the deploy that spawned them; the gas counter is
// copied into the child and folded back by AbsorbChild.
//
// Grounded on core/access_control.go's bitset-style role-grant/revoke map
// (generalized here from string roles to READ/WRITE/ADD bits keyed by URef
// address) and core/virtual_machine.go's VMContext/GasMeter pairing (a
// mutable per-call struct threading gas state through host dispatch).
type RuntimeContext struct {
	mu sync.Mutex

	EntryPointType EntryPointType
	BaseKey        types.Key
	NamedKeys      map[string]types.Key
	AccessRights   map[types.Hash32]types.AccessRights

	AuthorizationKeys []types.Hash32
	Account           *types.Account

	Args types.RuntimeArgs

	gasCounter             uint64
	gasLimit               uint64
	remainingSpendingLimit *big.Int

	AddressGen   *state.AddressGenerator
	TrackingCopy *state.TrackingCopy

	Phase           types.Phase
	Blocktime       uint64
	DeployHash      types.Hash32
	ProtocolVersion types.ProtocolVersion

	Transfers []types.Hash32

	CallStack []CallStackElement
}

// CallStackElement identifies one frame of the active call stack, used by
// load_call_stack and by the contract-call protocol's Session/Contract
// transition rules.
type CallStackElement struct {
	Type EntryPointType
	Key  types.Key
}

// NewRootContext builds the RuntimeContext for the first (Session) frame of
// a deploy.
func NewRootContext(
	account *types.Account,
	authKeys []types.Hash32,
	args types.RuntimeArgs,
	gasLimit uint64,
	spendingLimit *big.Int,
	addrGen *state.AddressGenerator,
	tc *state.TrackingCopy,
	phase types.Phase,
	blocktime uint64,
	deployHash types.Hash32,
	protocolVersion types.ProtocolVersion,
) *RuntimeContext {
	namedKeys := make(map[string]types.Key, len(account.NamedKeys))
	for k, v := range account.NamedKeys {
		namedKeys[k] = v
	}
	rights := make(map[types.Hash32]types.AccessRights)
	rights[account.MainPurse.Addr] = account.MainPurse.Rights
	baseKey := types.NewAccountKey(account.AccountHash)
	return &RuntimeContext{
		EntryPointType:         FrameSession,
		BaseKey:                baseKey,
		NamedKeys:              namedKeys,
		AccessRights:           rights,
		AuthorizationKeys:      authKeys,
		Account:                account,
		Args:                   args,
		gasLimit:               gasLimit,
		remainingSpendingLimit: new(big.Int).Set(spendingLimit),
		AddressGen:             addrGen,
		TrackingCopy:           tc,
		Phase:                  phase,
		Blocktime:              blocktime,
		DeployHash:             deployHash,
		ProtocolVersion:        protocolVersion,
		CallStack:              []CallStackElement{{Type: FrameSession, Key: baseKey}},
	}
}

// ChargeGas adds amount to the gas counter; monotonic, never decreases. An
// overflow past gasLimit fails with GasLimit and the counter is still
// advanced to gasLimit (callers read GasUsed() to get the reported cost).
func (rc *RuntimeContext) ChargeGas(amount uint64) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	next := rc.gasCounter + amount
	if next < rc.gasCounter || next > rc.gasLimit {
		rc.gasCounter = rc.gasLimit
		return types.GasLimitError()
	}
	rc.gasCounter = next
	return nil
}

// GasUsed reports gas charged so far.
func (rc *RuntimeContext) GasUsed() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.gasCounter
}

// GasLimit reports the frame's configured gas ceiling.
func (rc *RuntimeContext) GasLimit() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.gasLimit
}

// RemainingSpendingLimit reports motes still authorized to spend; this
// value is monotonically non-increasing within a deploy.
func (rc *RuntimeContext) RemainingSpendingLimit() *big.Int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return new(big.Int).Set(rc.remainingSpendingLimit)
}

// SpendFromLimit decreases the remaining spending limit by amount; fails if
// amount exceeds what remains.
func (rc *RuntimeContext) SpendFromLimit(amount *big.Int) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.remainingSpendingLimit.Cmp(amount) < 0 {
		return fmt.Errorf("exec: spending limit exceeded")
	}
	rc.remainingSpendingLimit.Sub(rc.remainingSpendingLimit, amount)
	return nil
}

// ValidateURef reports whether u's rights are a subset of the rights this
// frame has been granted for u's address (spec §4.4 invariant: every URef
// surfaced to WASM must be validated against the current frame).
func (rc *RuntimeContext) ValidateURef(u types.URef) error {
	rc.mu.Lock()
	granted, ok := rc.AccessRights[u.Addr]
	rc.mu.Unlock()
	if !ok || !u.Rights.IsSubsetOf(granted) {
		return types.ForgedReferenceError(u)
	}
	return nil
}

// GrantAccess extends this frame's access-rights map to include rights for
// addr, unioning with anything already granted.
func (rc *RuntimeContext) GrantAccess(addr types.Hash32, rights types.AccessRights) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.AccessRights[addr] = rc.AccessRights[addr] | rights
}

// NewURef allocates a fresh address via the shared generator, grants this
// frame READ|WRITE|ADD on it, and writes value through the tracking copy.
func (rc *RuntimeContext) NewURef(value types.StoredValue) (types.URef, error) {
	addr := rc.AddressGen.NewAddress()
	u := types.NewURef(addr, types.RightsReadAddWrite)
	rc.GrantAccess(addr, types.RightsReadAddWrite)
	rc.TrackingCopy.Write(types.NewURefKey(u), value)
	return u, nil
}

// serializedSize estimates the on-the-wire size of a StoredValue for gas
// metering purposes (spec §4.4: "charges gas proportional to serialized
// size").
func serializedSize(v types.StoredValue) int {
	if v.CLValue != nil {
		return len(v.CLValue.Bytes)
	}
	return 64 // conservative flat estimate for composite variants
}

// MeteredWriteGS charges gas proportional to value's serialized size, then
// writes it through the tracking copy.
func (rc *RuntimeContext) MeteredWriteGS(key types.Key, value types.StoredValue, costPerByte uint64) error {
	if key.Tag == types.KeyURef {
		if err := rc.ValidateURef(key.URef); err != nil {
			return err
		}
	}
	if err := rc.ChargeGas(uint64(serializedSize(value)) * costPerByte); err != nil {
		return err
	}
	rc.TrackingCopy.Write(key, value)
	return nil
}

// MeteredAddGS is MeteredWriteGS's counterpart for Add* transforms.
func (rc *RuntimeContext) MeteredAddGS(key types.Key, n uint64, costPerByte uint64) error {
	if key.Tag == types.KeyURef {
		if err := rc.ValidateURef(key.URef); err != nil {
			return err
		}
	}
	if err := rc.ChargeGas(8 * costPerByte); err != nil {
		return err
	}
	return rc.TrackingCopy.AddUint64(key, n)
}

// NewFromSelf produces a child RuntimeContext for a nested contract call.
// The child starts from a copy of rc's gas counter; AbsorbChild folds its
// final gas usage and transfers back into rc once the nested call returns
// successfully. The remaining spending limit is the same *big.Int as rc's,
// so spending in the child is seen by rc at once.
func (rc *RuntimeContext) NewFromSelf(
	baseKey types.Key,
	entryType EntryPointType,
	namedKeys map[string]types.Key,
	accessRights map[types.Hash32]types.AccessRights,
	args types.RuntimeArgs,
) *RuntimeContext {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	mergedRights := make(map[types.Hash32]types.AccessRights, len(rc.AccessRights)+len(accessRights))
	for k, v := range rc.AccessRights {
		mergedRights[k] = v
	}
	for k, v := range accessRights {
		mergedRights[k] = mergedRights[k] | v
	}

	child := &RuntimeContext{
		EntryPointType:         entryType,
		BaseKey:                baseKey,
		NamedKeys:              namedKeys,
		AccessRights:           mergedRights,
		AuthorizationKeys:      rc.AuthorizationKeys,
		Account:                rc.Account,
		Args:                   args,
		gasCounter:             rc.gasCounter,
		gasLimit:               rc.gasLimit,
		remainingSpendingLimit: rc.remainingSpendingLimit,
		AddressGen:             rc.AddressGen,
		TrackingCopy:           rc.TrackingCopy,
		Phase:                  rc.Phase,
		Blocktime:              rc.Blocktime,
		DeployHash:             rc.DeployHash,
		ProtocolVersion:        rc.ProtocolVersion,
		Transfers:              nil,
		CallStack:              append(append([]CallStackElement{}, rc.CallStack...), CallStackElement{Type: entryType, Key: baseKey}),
	}
	return child
}

// AbsorbChild folds a completed child frame's gas usage and transfers back
// into rc after a successful nested call returns (spec §9's Open Question
// decision: child transfers merge into the parent on success).
func (rc *RuntimeContext) AbsorbChild(child *RuntimeContext) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.gasCounter = child.gasCounter
	rc.Transfers = append(rc.Transfers, child.Transfers...)
}

// MergeNamedKeysFromSessionChild implements spec §9's Open Question decision
// 2 for a Session->Session nested call: on a Ret exit the child's named keys
// must equal the parent's at Ret time (any divergence is rejected); on a
// clean, non-Ret exit the parent's named keys are overwritten with the
// child's. Callers only invoke this for the Session->Session transition;
// Session->Contract and Contract->Contract frames never merge named keys
// back into the caller.
func (rc *RuntimeContext) MergeNamedKeysFromSessionChild(child *RuntimeContext, viaRet bool) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if viaRet {
		if !namedKeyMapsEqual(rc.NamedKeys, child.NamedKeys) {
			return types.NewExecutionError(types.ErrInvalidContext, "exec: named keys diverged across a session-to-session ret")
		}
		return nil
	}
	rc.NamedKeys = child.NamedKeys
	return nil
}

// namedKeyMapsEqual compares two named-key maps using Key.Equal (ignoring
// URef access-rights bits, consistent with lookup semantics elsewhere).
func namedKeyMapsEqual(a, b map[string]types.Key) bool {
	if len(a) != len(b) {
		return false
	}
	for name, k := range a {
		bk, ok := b[name]
		if !ok || !k.Equal(bk) {
			return false
		}
	}
	return true
}

// GetCaller returns the originating account — not the immediate caller,
// which is read from the call stack instead (spec §4.4).
func (rc *RuntimeContext) GetCaller() types.Hash32 {
	return rc.Account.AccountHash
}

// ImmediateCaller returns the base key of the frame directly below the
// current one on the call stack, if any.
func (rc *RuntimeContext) ImmediateCaller() (types.Key, bool) {
	if len(rc.CallStack) < 2 {
		return types.Key{}, false
	}
	return rc.CallStack[len(rc.CallStack)-2].Key, true
}

// PushFrame records a new call-stack frame for a native, same-context system
// contract call (one system contract invoking another's entry point without
// going through NewFromSelf). PopFrame removes it once that inner call
// returns.
func (rc *RuntimeContext) PushFrame(entryType EntryPointType, key types.Key) {
	rc.CallStack = append(rc.CallStack, CallStackElement{Type: entryType, Key: key})
}

// PopFrame removes the frame most recently added by PushFrame.
func (rc *RuntimeContext) PopFrame() {
	rc.CallStack = rc.CallStack[:len(rc.CallStack)-1]
}

// PutKey installs name -> key in this frame's named-key map, extending
// access rights for a URef value.
func (rc *RuntimeContext) PutKey(name string, key types.Key) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.NamedKeys[name] = key
	if key.Tag == types.KeyURef {
		rc.AccessRights[key.URef.Addr] = rc.AccessRights[key.URef.Addr] | key.URef.Rights
	}
}

// RemoveKey deletes name from this frame's named-key map. Access rights
// granted solely through that entry are not automatically revoked (spec
// does not require revocation-on-remove; other named keys or args may still
// reference the same address).
func (rc *RuntimeContext) RemoveKey(name string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.NamedKeys, name)
}

// GetKey looks up name in this frame's named-key map.
func (rc *RuntimeContext) GetKey(name string) (types.Key, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	k, ok := rc.NamedKeys[name]
	return k, ok
}

// DictionaryItemKeyMaxLength bounds a dictionary item key's length (spec
// §4.6/§8).
const DictionaryItemKeyMaxLength = 128

// ValidateDictionaryItemKey enforces the length bound, returning the typed
// ApiError the host ABI reports on violation.
func ValidateDictionaryItemKey(key []byte) error {
	if len(key) > DictionaryItemKeyMaxLength {
		return types.NewExecutionError(types.ErrDictionaryItemKeyExceedsLength,
			fmt.Sprintf("dictionary item key exceeds %d bytes", DictionaryItemKeyMaxLength))
	}
	return nil
}
