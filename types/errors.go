package types

import "fmt"

// ApiError is the non-negative i32 code a WASM guest can observe directly
// from a host-function return value (the "recoverable" tier in spec §4.6's
// three-tier error model).
type ApiError int32

const (
	ApiSuccess                        ApiError = 0
	ApiMissingArgument                ApiError = 1
	ApiInvalidArgument                ApiError = 2
	ApiDeserialize                    ApiError = 3
	ApiInvalidPurseFlags              ApiError = 5
	ApiInvalidPurse                   ApiError = 6
	ApiValueNotFound                  ApiError = 13
	ApiUref                           ApiError = 14
	ApiUnknownProtocolVersion         ApiError = 19
	ApiNoAccessRights                 ApiError = 20
	ApiForgedReference                ApiError = 21
	ApiArgIndexOutOfBounds            ApiError = 22
	ApiContractNotFound               ApiError = 23
	ApiGetKey                         ApiError = 24
	ApiUnexpectedKeyVariant           ApiError = 25
	ApiInvalidContext                 ApiError = 26
	ApiHostBufferEmpty                ApiError = 27
	ApiHostBufferFull                 ApiError = 28
	ApiBufferTooSmall                 ApiError = 29
	ApiDictionaryItemKeyExceedsLength ApiError = 30
	ApiMint                           ApiError = 100 // +mint code
	ApiHandlePayment                  ApiError = 200 // +handle_payment code
	ApiAuction                        ApiError = 300 // +auction code
	ApiGasLimit                       ApiError = 18
)

func (e ApiError) Error() string { return fmt.Sprintf("ApiError(%d)", int32(e)) }

// ExecutionErrorKind tags the "trap with host error" tier: an error that
// unwinds the WASM instance and is materialized as an ExecutionResult
// failure by the executor.
type ExecutionErrorKind int

const (
	ErrRevert ExecutionErrorKind = iota
	ErrMissingArgument
	ErrInvalidArgument
	ErrTypeMismatch
	ErrNoSuchMethod
	ErrInvalidContractVersion
	ErrNoActiveContractVersions
	ErrLockedContract
	ErrDisabledContract
	ErrIncompatibleProtocolMajorVersion
	ErrForgedReference
	ErrInvalidContext
	ErrDeploymentAuthorizationFailure
	ErrAddKeyFailure
	ErrRemoveKeyFailure
	ErrUpdateKeyFailure
	ErrSetThresholdFailure
	ErrGasLimit
	ErrHostBufferFull
	ErrBufferTooSmall
	ErrOutOfMemory
	ErrDictionaryItemKeyExceedsLength
	ErrInterpreter
	ErrRet // pseudo-error: normal early return carrying the returned-URef list
)

// ExecutionError is the typed payload carried by a trap, recovered by the
// host after the WASM instance unwinds.
type ExecutionError struct {
	Kind    ExecutionErrorKind
	Message string
	ApiCode ApiError
	URef    *URef        // ForgedReference
	Hash    *Hash32      // DisabledContract / contract-not-found style errors
	RetURefs []URef      // ErrRet payload: URefs to extend into caller access rights
	RetValue []byte      // ErrRet payload: the returned value bytes
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("execution error: %v", e.Kind)
}

func NewExecutionError(kind ExecutionErrorKind, msg string) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: msg}
}

func ForgedReferenceError(u URef) *ExecutionError {
	return &ExecutionError{Kind: ErrForgedReference, Message: fmt.Sprintf("forged reference: %s", u.Addr), URef: &u}
}

func GasLimitError() *ExecutionError {
	return &ExecutionError{Kind: ErrGasLimit, Message: "gas limit exceeded"}
}

// RetError builds the pseudo-error used to signal a clean early return from
// a host-function call: the engine's trap facility still carries it, but the
// design treats it as a normal early return (spec §9 design notes), not an
// exception — contractcall.go recovers it specially and never logs it as a
// failure.
func RetError(value []byte, urefs []URef) *ExecutionError {
	return &ExecutionError{Kind: ErrRet, RetValue: value, RetURefs: urefs}
}

// PreprocessingError tags a precondition failure that occurs before any gas
// is charged (spec §7's "Preprocessing" tier).
type PreprocessingErrorKind int

const (
	PreDeserialize PreprocessingErrorKind = iota
	PreMissingMemorySection
	PreWasmValidation
	PreOperationForbiddenByGasRules
	PreStackLimiter
)

type PreprocessingError struct {
	Kind    PreprocessingErrorKind
	Message string
}

func (e *PreprocessingError) Error() string { return e.Message }

func NewPreprocessingError(kind PreprocessingErrorKind, msg string) *PreprocessingError {
	return &PreprocessingError{Kind: kind, Message: msg}
}

// TrieError tags failures surfaced from the trie store / commit path.
type TrieErrorKind int

const (
	TrieRootNotFound TrieErrorKind = iota
	TrieKeyNotFound
	TrieTransformError
	TrieAlreadyExists
)

type TrieError struct {
	Kind    TrieErrorKind
	Message string
}

func (e *TrieError) Error() string { return e.Message }

func NewTrieError(kind TrieErrorKind, msg string) *TrieError {
	return &TrieError{Kind: kind, Message: msg}
}
