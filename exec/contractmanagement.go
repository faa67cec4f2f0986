package exec

import (
	"fmt"

	"synnergy-core/types"
)

// This file implements the contract-package/version/group management half of
// the host ABI (spec §4.6): create_contract_package_at_hash,
// add_contract_version, create_contract_user_group and friends.

// CreateContractPackageAtHash implements `create_contract_package_at_hash`:
// allocates a hash address for the package and an access URef guarding it.
func (rt *Runtime) CreateContractPackageAtHash(isLocked bool) (types.Hash32, types.URef, error) {
	pkgHash := rt.Context.AddressGen.NewAddress()
	accessAddr := rt.Context.AddressGen.NewAddress()
	accessURef := types.NewURef(accessAddr, types.RightsReadAddWrite)
	rt.Context.GrantAccess(accessAddr, types.RightsReadAddWrite)

	lock := types.Unlocked
	if isLocked {
		lock = types.Locked
	}
	pkg := &types.ContractPackage{
		AccessKey:        accessURef,
		Versions:         map[types.ContractVersionKey]types.Hash32{},
		DisabledVersions: map[types.ContractVersionKey]bool{},
		Groups:           map[string][]types.URef{},
		LockStatus:       lock,
	}
	rt.Context.TrackingCopy.Write(types.NewHashKey(pkgHash), types.StoredValue{Tag: types.SVContractPackage, ContractPackage: pkg})
	return pkgHash, accessURef, nil
}

func (rt *Runtime) readPackage(pkgHash types.Hash32) (*types.ContractPackage, error) {
	val, found, err := rt.Context.TrackingCopy.Read(types.NewHashKey(pkgHash))
	if err != nil {
		return nil, err
	}
	if !found || val.ContractPackage == nil {
		return nil, types.NewExecutionError(types.ErrInvalidArgument, fmt.Sprintf("exec: contract package %s not found", pkgHash))
	}
	return val.ContractPackage, nil
}

// AddContractVersion implements `add_contract_version`: re-extracts the
// currently executing session's module bytes (rt.ModuleBytes) as a new
// ContractWasm entry, merges the previous version's named keys into the new
// one, and records the new version in the package (spec §4.6).
func (rt *Runtime) AddContractVersion(
	pkgHash types.Hash32,
	entryPoints map[string]types.EntryPoint,
	namedKeys map[string]types.Key,
) (types.Hash32, uint32, error) {
	pkg, err := rt.readPackage(pkgHash)
	if err != nil {
		return types.Hash32{}, 0, err
	}
	if pkg.LockStatus == types.Locked {
		return types.Hash32{}, 0, types.NewExecutionError(types.ErrLockedContract, fmt.Sprintf("exec: contract package %s is locked", pkgHash))
	}
	if len(rt.ModuleBytes) == 0 {
		return types.Hash32{}, 0, types.NewExecutionError(types.ErrInvalidContext, "exec: add_contract_version called outside a session with module bytes")
	}

	major := rt.Context.ProtocolVersion.Major
	var nextVersion uint32
	var prevContractHash types.Hash32
	havePrev := false
	for vk, ch := range pkg.Versions {
		if vk.ProtocolMajor == major && vk.Version >= nextVersion {
			nextVersion = vk.Version
			prevContractHash = ch
			havePrev = true
		}
	}
	nextVersion++

	merged := make(map[string]types.Key, len(namedKeys))
	if havePrev {
		if prev, err := rt.Context.TrackingCopy.GetContract(prevContractHash); err == nil {
			for k, v := range prev.NamedKeys {
				merged[k] = v
			}
		}
	}
	for k, v := range namedKeys {
		merged[k] = v
	}

	wasmHash := rt.Blake2b(rt.ModuleBytes)
	rt.Context.TrackingCopy.Write(types.NewHashKey(wasmHash), types.StoredValue{Tag: types.SVContractWasm, ContractWasm: rt.ModuleBytes})

	contractHash := rt.Context.AddressGen.NewAddress()
	contract := &types.Contract{
		ContractPackageHash: pkgHash,
		ContractWasmHash:    wasmHash,
		NamedKeys:           merged,
		EntryPoints:         entryPoints,
		ProtocolVersion:     rt.Context.ProtocolVersion,
	}
	rt.Context.TrackingCopy.Write(types.NewHashKey(contractHash), types.StoredValue{Tag: types.SVContract, Contract: contract})

	versionKey := types.ContractVersionKey{ProtocolMajor: major, Version: nextVersion}
	newVersions := make(map[types.ContractVersionKey]types.Hash32, len(pkg.Versions)+1)
	for k, v := range pkg.Versions {
		newVersions[k] = v
	}
	newVersions[versionKey] = contractHash
	pkg.Versions = newVersions
	rt.Context.TrackingCopy.Write(types.NewHashKey(pkgHash), types.StoredValue{Tag: types.SVContractPackage, ContractPackage: pkg})

	return contractHash, nextVersion, nil
}

// CreateContractUserGroup implements `create_contract_user_group`: mints
// numNewURefs fresh member URefs (ADD-only, matching the casper convention
// that group membership proves "may call this gated entry point" rather
// than granting any state access of its own), appends them to existingURefs,
// and writes the merged membership list back into the package.
func (rt *Runtime) CreateContractUserGroup(pkgHash types.Hash32, label string, numNewURefs uint8, existingURefs []types.URef) ([]types.URef, error) {
	pkg, err := rt.readPackage(pkgHash)
	if err != nil {
		return nil, err
	}
	fresh := make([]types.URef, numNewURefs)
	for i := range fresh {
		addr := rt.Context.AddressGen.NewAddress()
		fresh[i] = types.NewURef(addr, types.RightsAdd)
		rt.Context.GrantAccess(addr, types.RightsAdd)
	}
	members := append(append([]types.URef{}, existingURefs...), fresh...)
	if pkg.Groups == nil {
		pkg.Groups = map[string][]types.URef{}
	}
	pkg.Groups[label] = append(append([]types.URef{}, pkg.Groups[label]...), members...)
	rt.Context.TrackingCopy.Write(types.NewHashKey(pkgHash), types.StoredValue{Tag: types.SVContractPackage, ContractPackage: pkg})
	return fresh, nil
}

// ProvisionContractUserGroupURef implements `provision_contract_user_group_uref`.
func (rt *Runtime) ProvisionContractUserGroupURef(pkgHash types.Hash32, label string) (types.URef, error) {
	fresh, err := rt.CreateContractUserGroup(pkgHash, label, 1, nil)
	if err != nil {
		return types.URef{}, err
	}
	return fresh[0], nil
}

// RemoveContractUserGroup implements `remove_contract_user_group`.
func (rt *Runtime) RemoveContractUserGroup(pkgHash types.Hash32, label string) error {
	pkg, err := rt.readPackage(pkgHash)
	if err != nil {
		return err
	}
	delete(pkg.Groups, label)
	rt.Context.TrackingCopy.Write(types.NewHashKey(pkgHash), types.StoredValue{Tag: types.SVContractPackage, ContractPackage: pkg})
	return nil
}

// RemoveContractUserGroupURefs implements `remove_contract_user_group_urefs`.
func (rt *Runtime) RemoveContractUserGroupURefs(pkgHash types.Hash32, label string, urefs []types.URef) error {
	pkg, err := rt.readPackage(pkgHash)
	if err != nil {
		return err
	}
	remove := make(map[types.Hash32]bool, len(urefs))
	for _, u := range urefs {
		remove[u.Addr] = true
	}
	kept := make([]types.URef, 0, len(pkg.Groups[label]))
	for _, member := range pkg.Groups[label] {
		if !remove[member.Addr] {
			kept = append(kept, member)
		}
	}
	pkg.Groups[label] = kept
	rt.Context.TrackingCopy.Write(types.NewHashKey(pkgHash), types.StoredValue{Tag: types.SVContractPackage, ContractPackage: pkg})
	return nil
}
