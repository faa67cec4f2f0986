package types

// AccessRights is a bitset of operations a URef grants. It mirrors the
// role-bitset style used throughout the teacher's access-control code,
// narrowed from named string roles to the three fixed bits the spec names.
type AccessRights uint8

const (
	RightsRead AccessRights = 1 << iota
	RightsWrite
	RightsAdd
)

const RightsNone AccessRights = 0

const RightsReadAddWrite = RightsRead | RightsWrite | RightsAdd
const RightsReadWrite = RightsRead | RightsWrite

func (r AccessRights) Has(bit AccessRights) bool { return r&bit == bit }

// IsSubsetOf reports whether every bit set in r is also set in superset —
// the exact check validate_uref performs against a context's granted rights.
func (r AccessRights) IsSubsetOf(superset AccessRights) bool {
	return r&^superset == 0
}

func (r AccessRights) String() string {
	s := ""
	if r.Has(RightsRead) {
		s += "R"
	}
	if r.Has(RightsWrite) {
		s += "W"
	}
	if r.Has(RightsAdd) {
		s += "A"
	}
	if s == "" {
		return "-"
	}
	return s
}

// URef is an unforgeable reference: a 32-byte address plus an access-rights
// bitset. Validity is contextual — a URef is only usable when its address
// and a superset of its rights are present in the current frame's
// access-rights map (see exec.RuntimeContext.ValidateURef).
type URef struct {
	Addr   Hash32
	Rights AccessRights
}

func NewURef(addr Hash32, rights AccessRights) URef { return URef{Addr: addr, Rights: rights} }

// Attenuate returns a copy of u with bits outside keep masked off. Nothing
// in this module calls it; contract calls restrict the caller's main purse
// through the child context's access-rights map instead.
func (u URef) Attenuate(keep AccessRights) URef {
	return URef{Addr: u.Addr, Rights: u.Rights & keep}
}
