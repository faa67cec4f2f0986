package exec

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"

	"synnergy-core/engine"
	"synnergy-core/types"
)

// Runtime wraps one active call frame's RuntimeContext together with the
// engine configuration, system-contract registry and host buffer it needs
// to service host calls (spec §4's "Runtime wraps the context and a WASM
// engine handle"). Unlike the source pattern this generalizes (a Runtime
// holding a live engine Instance that in turn holds a clone of the Runtime,
// a reference cycle), host-call dispatch here takes the *Runtime as a plain
// Go closure capture — see HostFunctionTable — so no cycle is ever stored;
// the WasmInstance the Runtime hands to engine.NewModule is a sibling, not
// an owner (spec §9's "Cyclic references" design note).
type Runtime struct {
	Context         *RuntimeContext
	EngineConfig    engine.EngineConfig
	SystemContracts map[string]types.Hash32 // name -> contract hash, resolved once per deploy
	Cache           *engine.PrecompileCache

	// ModuleBytes is the raw WASM of the module currently executing in this
	// frame, retained so add_contract_version can re-extract and instrument
	// it into a new ContractWasm entry (spec §4.6).
	ModuleBytes []byte

	hostBuffer HostBuffer
}

// NewRuntime builds a Runtime for one call frame.
func NewRuntime(ctx *RuntimeContext, cfg engine.EngineConfig, systemContracts map[string]types.Hash32, cache *engine.PrecompileCache) *Runtime {
	return &Runtime{Context: ctx, EngineConfig: cfg, SystemContracts: systemContracts, Cache: cache}
}

// chargeHostCall charges the tabulated base + per-byte cost for a host
// function named name, given the serialized sizes of its variable-length
// arguments (spec §4.6 step 1: "charge its tabulated gas cost... via
// charge_host_function_call").
func (rt *Runtime) chargeHostCall(name string, argSizes ...int) error {
	cost, ok := rt.EngineConfig.Wasm.HostFunctionCosts[name]
	if !ok {
		return rt.Context.ChargeGas(engine.DefaultGasCost)
	}
	total := cost.Base
	for _, n := range argSizes {
		total += cost.PerByteArg * uint64(n)
	}
	return rt.Context.ChargeGas(total)
}

// --- Global state: read / write / add / new_uref --------------------------

// ReadValue implements the `read` host function: validates READ rights on a
// URef-tagged key, then reads through the tracking copy.
func (rt *Runtime) ReadValue(key types.Key) (types.StoredValue, bool, error) {
	if key.Tag == types.KeyURef {
		if err := rt.Context.ValidateURef(types.URef{Addr: key.URef.Addr, Rights: types.RightsRead}); err != nil {
			return types.StoredValue{}, false, err
		}
	}
	return rt.Context.TrackingCopy.Read(key)
}

// WriteValue implements `write`: validates WRITE rights, then delegates to
// RuntimeContext.MeteredWriteGS for the size-proportional gas charge.
func (rt *Runtime) WriteValue(key types.Key, value types.StoredValue) error {
	if key.Tag == types.KeyURef {
		if err := rt.Context.ValidateURef(types.URef{Addr: key.URef.Addr, Rights: types.RightsWrite}); err != nil {
			return err
		}
	}
	return rt.Context.MeteredWriteGS(key, value, writeCostPerByte)
}

// writeCostPerByte is folded into metered_write_gs's size-proportional
// charge, separate from the flat host-function base cost already charged by
// chargeHostCall for the `write` ABI entry itself.
const writeCostPerByte = 1

// AddValue implements `add`: validates ADD rights, interprets value as a
// numeric delta (CLValue) added atomically against the key's current value.
func (rt *Runtime) AddValue(key types.Key, value types.CLValue) error {
	if key.Tag == types.KeyURef {
		if err := rt.Context.ValidateURef(types.URef{Addr: key.URef.Addr, Rights: types.RightsAdd}); err != nil {
			return err
		}
	}
	delta := new(big.Int).SetBytes(value.Bytes)
	return rt.Context.TrackingCopy.AddBigInt(key, delta)
}

// NewURef implements `new_uref`.
func (rt *Runtime) NewURef(value types.StoredValue) (types.URef, error) {
	return rt.Context.NewURef(value)
}

// --- Named keys -------------------------------------------------------------

func (rt *Runtime) GetKey(name string) (types.Key, bool)    { return rt.Context.GetKey(name) }
func (rt *Runtime) HasKey(name string) bool                 { _, ok := rt.Context.GetKey(name); return ok }
func (rt *Runtime) RemoveKey(name string)                   { rt.Context.RemoveKey(name) }

// PutKey implements `put_key`, subject to the Session action-threshold
// policy (spec §4.4: "Named-key mutations respect the action-threshold
// policy of the account for Session frames").
func (rt *Runtime) PutKey(name string, key types.Key) error {
	if rt.Context.EntryPointType == FrameSession {
		if err := rt.checkActionThreshold(rt.Context.Account.ActionThresholds.KeyManagement); err != nil {
			return err
		}
	}
	rt.Context.PutKey(name, key)
	return nil
}

// checkActionThreshold sums the weights of the deploy's authorization keys
// against the account's associated-key weights and compares to threshold.
func (rt *Runtime) checkActionThreshold(threshold uint8) error {
	var total uint
	for _, signer := range rt.Context.AuthorizationKeys {
		total += uint(rt.Context.Account.AssociatedKeys[signer])
	}
	if total < uint(threshold) {
		return types.NewExecutionError(types.ErrDeploymentAuthorizationFailure,
			fmt.Sprintf("exec: signing weight %d below action threshold %d", total, threshold))
	}
	return nil
}

// --- Frame identity ----------------------------------------------------------

func (rt *Runtime) GetCaller() types.Hash32 { return rt.Context.GetCaller() }
func (rt *Runtime) GetBlocktime() uint64    { return rt.Context.Blocktime }
func (rt *Runtime) GetPhase() types.Phase   { return rt.Context.Phase }
func (rt *Runtime) IsValidURef(u types.URef) bool {
	return rt.Context.ValidateURef(u) == nil
}

// --- Purses & transfers -------------------------------------------------------

// CreatePurse implements `create_purse`: a fresh URef whose balance lives
// under Key::Balance(addr), seeded at zero.
func (rt *Runtime) CreatePurse() (types.URef, error) {
	addr := rt.Context.AddressGen.NewAddress()
	u := types.NewURef(addr, types.RightsReadAddWrite)
	rt.Context.GrantAccess(addr, types.RightsReadAddWrite)
	zero := types.StoredValue{Tag: types.SVCLValue, CLValue: &types.CLValue{Type: types.CLU512, Bytes: new(big.Int).Bytes()}}
	rt.Context.TrackingCopy.Write(types.NewBalanceKey(addr), zero)
	return u, nil
}

// GetBalance implements `get_balance`: validates READ on the purse, returns
// its balance as a big.Int.
func (rt *Runtime) GetBalance(purse types.URef) (*big.Int, error) {
	if err := rt.Context.ValidateURef(types.URef{Addr: purse.Addr, Rights: types.RightsRead}); err != nil {
		return nil, err
	}
	return rt.readBalance(purse.Addr)
}

func (rt *Runtime) readBalance(purseAddr types.Hash32) (*big.Int, error) {
	val, found, err := rt.Context.TrackingCopy.Read(types.NewBalanceKey(purseAddr))
	if err != nil {
		return nil, err
	}
	if !found || val.CLValue == nil {
		return nil, types.NewExecutionError(types.ErrInvalidArgument, "exec: purse has no balance entry")
	}
	return new(big.Int).SetBytes(val.CLValue.Bytes), nil
}

func bigIntCLValue(n *big.Int) types.StoredValue {
	return types.StoredValue{Tag: types.SVCLValue, CLValue: &types.CLValue{Type: types.CLU512, Bytes: n.Bytes()}}
}

// transferBalance debits source and credits target by amount, creating
// target's balance entry at zero first if this is its first credit.
func (rt *Runtime) transferBalance(source, target types.Hash32, amount *big.Int) error {
	srcBal, err := rt.readBalance(source)
	if err != nil {
		return err
	}
	if srcBal.Cmp(amount) < 0 {
		return types.NewExecutionError(types.ErrInvalidArgument, "exec: transfer amount exceeds source purse balance")
	}
	if _, found, err := rt.Context.TrackingCopy.Read(types.NewBalanceKey(target)); err != nil {
		return err
	} else if !found {
		rt.Context.TrackingCopy.Write(types.NewBalanceKey(target), bigIntCLValue(new(big.Int)))
	}
	if err := rt.Context.TrackingCopy.AddBigInt(types.NewBalanceKey(source), new(big.Int).Neg(amount)); err != nil {
		return err
	}
	return rt.Context.TrackingCopy.AddBigInt(types.NewBalanceKey(target), amount)
}

// TransferFromPurseToPurse implements `transfer_from_purse_to_purse`.
// Validates only the source purse (spec §4.7/§8 scenario 5: the attenuated
// main-purse case fails here for lack of READ) — crediting a foreign
// target purse requires no rights over it, mirroring a deposit.
func (rt *Runtime) TransferFromPurseToPurse(source, target types.URef, amount *big.Int) error {
	if err := rt.Context.ValidateURef(types.URef{Addr: source.Addr, Rights: types.RightsRead}); err != nil {
		return err
	}
	return rt.transferBalance(source.Addr, target.Addr, amount)
}

// TransferFromPurseToAccount implements `transfer_from_purse_to_account`: if
// targetAccount has no Account stored yet, one is created with a fresh main
// purse (spec §3's "Accounts are created by transfer-to-new-account"
// lifecycle). Returns the generated TransferRecord's address.
func (rt *Runtime) TransferFromPurseToAccount(source types.URef, targetAccount types.Hash32, amount *big.Int, id *uint64) (types.Hash32, error) {
	if err := rt.Context.ValidateURef(types.URef{Addr: source.Addr, Rights: types.RightsRead}); err != nil {
		return types.Hash32{}, err
	}
	targetPurse, err := rt.ensureAccount(targetAccount)
	if err != nil {
		return types.Hash32{}, err
	}
	if err := rt.transferBalance(source.Addr, targetPurse.Addr, amount); err != nil {
		return types.Hash32{}, err
	}
	return rt.recordTransfer(source.Addr, targetAccount, source, targetPurse, amount, id), nil
}

// TransferToAccount implements `transfer_to_account`: always sources from
// the executing account's own main purse.
func (rt *Runtime) TransferToAccount(targetAccount types.Hash32, amount *big.Int, id *uint64) (types.Hash32, error) {
	return rt.TransferFromPurseToAccount(rt.Context.Account.MainPurse, targetAccount, amount, id)
}

// ensureAccount returns targetAccount's main purse, creating a fresh Account
// (with a new main purse at zero balance) if none is stored yet.
func (rt *Runtime) ensureAccount(accountHash types.Hash32) (types.URef, error) {
	key := types.NewAccountKey(accountHash)
	val, found, err := rt.Context.TrackingCopy.Read(key)
	if err != nil {
		return types.URef{}, err
	}
	if found && val.Account != nil {
		return val.Account.MainPurse, nil
	}
	purseAddr := rt.Context.AddressGen.NewAddress()
	purse := types.NewURef(purseAddr, types.RightsReadAddWrite)
	rt.Context.TrackingCopy.Write(types.NewBalanceKey(purseAddr), bigIntCLValue(new(big.Int)))
	account := &types.Account{
		AccountHash:    accountHash,
		NamedKeys:      map[string]types.Key{},
		MainPurse:      purse,
		AssociatedKeys: map[types.Hash32]uint8{accountHash: 1},
		ActionThresholds: types.ActionThresholds{Deployment: 1, KeyManagement: 1},
	}
	rt.Context.TrackingCopy.Write(key, types.StoredValue{Tag: types.SVAccount, Account: account})
	return purse, nil
}

func (rt *Runtime) recordTransfer(fromPurse, toAccount types.Hash32, source, target types.URef, amount *big.Int, id *uint64) types.Hash32 {
	addr := rt.Context.AddressGen.NewAddress()
	rec := &types.TransferRecord{
		From:   rt.Context.GetCaller(),
		To:     toAccount,
		Source: source,
		Target: target,
		Amount: types.CLValue{Type: types.CLU512, Bytes: amount.Bytes()},
		ID:     id,
	}
	rt.Context.TrackingCopy.Write(types.NewTransferKey(addr), types.StoredValue{Tag: types.SVTransfer, Transfer: rec})
	rt.Context.Transfers = append(rt.Context.Transfers, addr)
	return addr
}

// --- Dictionaries -------------------------------------------------------------

// NewDictionary implements `new_dictionary`: allocates a seed URef; items
// are addressed as blake2b(seed.Addr || item_key), so no upfront write is
// needed for the seed itself.
func (rt *Runtime) NewDictionary() (types.URef, error) {
	addr := rt.Context.AddressGen.NewAddress()
	u := types.NewURef(addr, types.RightsReadAddWrite)
	rt.Context.GrantAccess(addr, types.RightsReadAddWrite)
	return u, nil
}

func dictionaryItemAddr(seed types.Hash32, itemKey []byte) types.Hash32 {
	h, _ := blake2b.New256(nil)
	h.Write(seed[:])
	h.Write(itemKey)
	var out types.Hash32
	copy(out[:], h.Sum(nil))
	return out
}

// DictionaryPut implements `dictionary_put`.
func (rt *Runtime) DictionaryPut(seed types.URef, itemKey []byte, value types.StoredValue) error {
	if err := ValidateDictionaryItemKey(itemKey); err != nil {
		return err
	}
	if err := rt.Context.ValidateURef(types.URef{Addr: seed.Addr, Rights: types.RightsAdd}); err != nil {
		return err
	}
	addr := dictionaryItemAddr(seed.Addr, itemKey)
	rt.Context.TrackingCopy.Write(types.NewDictionaryKey(addr), value)
	return nil
}

// DictionaryGet implements `dictionary_get`.
func (rt *Runtime) DictionaryGet(seed types.URef, itemKey []byte) (types.StoredValue, bool, error) {
	if err := ValidateDictionaryItemKey(itemKey); err != nil {
		return types.StoredValue{}, false, err
	}
	if err := rt.Context.ValidateURef(types.URef{Addr: seed.Addr, Rights: types.RightsRead}); err != nil {
		return types.StoredValue{}, false, err
	}
	addr := dictionaryItemAddr(seed.Addr, itemKey)
	return rt.Context.TrackingCopy.Read(types.NewDictionaryKey(addr))
}

// DictionaryRead implements `dictionary_read`: reads a Dictionary key whose
// address the guest already computed; the Dictionary Key variant carries no
// access-rights bits, so no URef validation applies (spec §3).
func (rt *Runtime) DictionaryRead(key types.Key) (types.StoredValue, bool, error) {
	return rt.Context.TrackingCopy.Read(key)
}

// --- Misc primitives -----------------------------------------------------------

func (rt *Runtime) Blake2b(input []byte) types.Hash32 {
	var out types.Hash32
	sum := blake2b.Sum256(input)
	copy(out[:], sum[:])
	return out
}

// RandomBytes implements `random_bytes`: fills n cryptographically random
// bytes via crypto/rand, the same primitive the teacher's Coin/auction code
// uses wherever it needs non-deterministic-looking but locally-sourced
// entropy (this engine's guest-facing contract does not claim the result is
// reproducible across nodes — callers requiring determinism derive
// addresses from AddressGenerator instead).
func (rt *Runtime) RandomBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := rand.Read(out); err != nil {
		return nil, types.NewExecutionError(types.ErrInterpreter, fmt.Sprintf("exec: random_bytes: %v", err))
	}
	return out, nil
}

// --- Call-stack / key introspection --------------------------------------------

// LoadNamedKeys implements `load_named_keys`: returns the current frame's
// named-key map.
func (rt *Runtime) LoadNamedKeys() map[string]types.Key { return rt.Context.NamedKeys }

// LoadAuthorizationKeys implements `load_authorization_keys`.
func (rt *Runtime) LoadAuthorizationKeys() []types.Hash32 { return rt.Context.AuthorizationKeys }

// LoadCallStack implements `load_call_stack`.
func (rt *Runtime) LoadCallStack() []CallStackElement { return rt.Context.CallStack }

// --- Host buffer accessors (used by hostfunctions.go) --------------------------

func (rt *Runtime) stageHostBuffer(value []byte) error { return rt.hostBuffer.Stage(value) }
func (rt *Runtime) takeHostBuffer() ([]byte, bool)     { return rt.hostBuffer.Take() }
func (rt *Runtime) peekHostBuffer() (int, bool)        { return rt.hostBuffer.Peek() }

// Revert implements `revert`: a non-negative ApiError the guest chose to
// trap with, surfaced to the executor as ErrRevert.
func (rt *Runtime) Revert(code types.ApiError) *types.ExecutionError {
	return &types.ExecutionError{Kind: types.ErrRevert, ApiCode: code, Message: fmt.Sprintf("exec: reverted with code %d", code)}
}

// Ret implements `ret`: stages value and urefs as the pseudo-error signaling
// a clean early return (spec §9 design note: modeled as a normal early
// return carried over the engine's trap facility, not an exception).
func (rt *Runtime) Ret(value []byte, urefs []types.URef) *types.ExecutionError {
	return types.RetError(value, urefs)
}
