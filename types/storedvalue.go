package types

import "fmt"

// CLValue is a typed payload: a CL type tag plus its canonical bytes. The
// executor never interprets the bytes itself — it is opaque cargo that the
// WASM guest and the host ABI agree on the shape of.
type CLType byte

const (
	CLBool CLType = iota
	CLI32
	CLI64
	CLU8
	CLU32
	CLU64
	CLU128
	CLU256
	CLU512
	CLUnit
	CLString
	CLKey
	CLURef
	CLOption
	CLList
	CLByteArray
	CLResult
	CLMap
	CLTuple1
	CLTuple2
	CLTuple3
	CLAny
)

type CLValue struct {
	Type  CLType
	Bytes []byte
}

// StoredValueTag identifies the variant held in a StoredValue union.
type StoredValueTag byte

const (
	SVCLValue StoredValueTag = iota
	SVAccount
	SVContract
	SVContractPackage
	SVContractWasm
	SVTransfer
	SVDeployInfo
	SVEraInfo
	SVBid
	SVWithdraw
	SVUnbonding
)

// StoredValue is the tagged union of everything a trie leaf may hold.
type StoredValue struct {
	Tag             StoredValueTag
	CLValue         *CLValue
	Account         *Account
	Contract        *Contract
	ContractPackage *ContractPackage
	ContractWasm    []byte
	Transfer        *TransferRecord
	DeployInfo      *DeployInfo
	EraInfo         *EraInfo
	Bid             *Bid
	Withdraw        *Withdraw
}

func (sv StoredValue) TypeName() string {
	switch sv.Tag {
	case SVCLValue:
		return "CLValue"
	case SVAccount:
		return "Account"
	case SVContract:
		return "Contract"
	case SVContractPackage:
		return "ContractPackage"
	case SVContractWasm:
		return "ContractWasm"
	case SVTransfer:
		return "Transfer"
	case SVDeployInfo:
		return "DeployInfo"
	case SVEraInfo:
		return "EraInfo"
	case SVBid:
		return "Bid"
	case SVWithdraw:
		return "Withdraw"
	case SVUnbonding:
		return "Unbonding"
	default:
		return fmt.Sprintf("Unknown(%d)", sv.Tag)
	}
}

type TransferRecord struct {
	From   Hash32
	To     Hash32
	Source URef
	Target URef
	Amount CLValue
	ID     *uint64
}

type DeployInfo struct {
	DeployHash Hash32
	Transfers  []Hash32
	From       Hash32
	Gas        uint64
}

type EraInfo struct {
	EraID        uint64
	SeigniorageAllocations []SeigniorageAllocation
}

type SeigniorageAllocation struct {
	ValidatorPublicKey Hash32
	Amount             uint64
}

type Bid struct {
	ValidatorPublicKey Hash32
	BondingPurse       URef
	StakedAmount       uint64
	DelegationRate     uint8
	Delegators         map[Hash32]uint64
}

type Withdraw struct {
	ValidatorPublicKey Hash32
	UnbonderPublicKey  Hash32
	Amount             uint64
	EraOfCreation      uint64
}

// Account is the stored representation of an on-chain account.
type Account struct {
	AccountHash      Hash32
	NamedKeys        map[string]Key
	MainPurse        URef
	AssociatedKeys   map[Hash32]uint8 // weight
	ActionThresholds ActionThresholds
}

type ActionThresholds struct {
	Deployment    uint8
	KeyManagement uint8
}

// Contract is one deployed version of a contract package.
type Contract struct {
	ContractPackageHash Hash32
	ContractWasmHash    Hash32
	NamedKeys           map[string]Key
	EntryPoints         map[string]EntryPoint
	ProtocolVersion     ProtocolVersion
}

type ProtocolVersion struct {
	Major, Minor, Patch uint32
}

// ContractPackage groups every version ever deployed under one access key.
//
// Groups holds each user group's member URefs as a slice rather than a
// map[URef]struct{} set: URef is not a valid JSON object-key type (it isn't
// a TextMarshaler), and a set keyed by struct value buys nothing here since
// membership lookups (IsGroupMember) are a handful of linear scans over a
// small, rarely-mutated list.
type ContractPackage struct {
	AccessKey        URef
	Versions         map[ContractVersionKey]Hash32 // (major, version) -> contract hash
	DisabledVersions map[ContractVersionKey]bool
	Groups           map[string][]URef
	LockStatus       LockStatus
}

// IsGroupMember reports whether u's address appears among group's member
// URefs (spec §4.7 step 3: group membership is checked by address, not by
// the exact rights bits the caller happens to hold).
func (cp *ContractPackage) IsGroupMember(group string, u URef) bool {
	for _, member := range cp.Groups[group] {
		if member.Addr == u.Addr {
			return true
		}
	}
	return false
}

// CallerHasAnyGroup reports whether any of the caller's accessRights
// addresses is a member of any of the listed groups.
func (cp *ContractPackage) CallerHasAnyGroup(groups map[string]struct{}, accessRights map[Hash32]AccessRights) bool {
	for group := range groups {
		for _, member := range cp.Groups[group] {
			if _, ok := accessRights[member.Addr]; ok {
				return true
			}
		}
	}
	return false
}

// ContractVersionKey identifies one version within a ContractPackage. It
// implements encoding.TextMarshaler/TextUnmarshaler so it can serve as a
// JSON object key in ContractPackage.Versions/DisabledVersions.
type ContractVersionKey struct {
	ProtocolMajor uint32
	Version       uint32
}

func (k ContractVersionKey) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d.%d", k.ProtocolMajor, k.Version)), nil
}

func (k *ContractVersionKey) UnmarshalText(text []byte) error {
	_, err := fmt.Sscanf(string(text), "%d.%d", &k.ProtocolMajor, &k.Version)
	return err
}

type LockStatus byte

const (
	Unlocked LockStatus = iota
	Locked
)

// EntryPointAccess discriminates Public entry points from group-gated ones.
type EntryPointAccess struct {
	Public bool
	Groups map[string]struct{}
}

type EntryPointType byte

const (
	EntryPointSession EntryPointType = iota
	EntryPointContract
)

type Parameter struct {
	Name string
	Type CLType
}

type EntryPoint struct {
	Name    string
	Args    []Parameter
	RetType CLType
	Access  EntryPointAccess
	Type    EntryPointType
}
