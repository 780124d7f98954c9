package presale

import "errors"

var (
	ErrSalePaused         = errors.New("presale: sale is paused")
	ErrZeroAmount         = errors.New("presale: amount must be greater than zero")
	ErrUnauthorized       = errors.New("presale: unauthorized")
	ErrAssetMismatch      = errors.New("presale: asset mismatch")
	ErrTransferFailure    = errors.New("presale: transfer failed")
	ErrAlreadyInitialized = errors.New("presale: already initialized")
	ErrNotInitialized     = errors.New("presale: not initialized")
	ErrInvalidArgument    = errors.New("presale: invalid argument")
	errNilState           = errors.New("presale: state not configured")
)

// ErrorCode is the stable numeric identifier of a presale error on the wire.
type ErrorCode uint32

const errorCodeBase ErrorCode = 6000

const (
	CodeSalePaused ErrorCode = errorCodeBase + iota
	CodeZeroAmount
	CodeUnauthorized
	CodeAssetMismatch
	CodeTransferFailure
	CodeAlreadyInitialized
	CodeNotInitialized
	CodeInvalidArgument
)

var errorTable = []struct {
	err  error
	code ErrorCode
	name string
}{
	{ErrSalePaused, CodeSalePaused, "SalePaused"},
	{ErrZeroAmount, CodeZeroAmount, "ZeroAmount"},
	{ErrUnauthorized, CodeUnauthorized, "Unauthorized"},
	{ErrAssetMismatch, CodeAssetMismatch, "AssetMismatch"},
	{ErrTransferFailure, CodeTransferFailure, "TransferFailure"},
	{ErrAlreadyInitialized, CodeAlreadyInitialized, "AlreadyInitialized"},
	{ErrNotInitialized, CodeNotInitialized, "NotInitialized"},
	{ErrInvalidArgument, CodeInvalidArgument, "InvalidArgument"},
}

// Classify maps err onto its presale error code and name. ok is false when
// err does not wrap any presale error kind.
func Classify(err error) (code ErrorCode, name string, ok bool) {
	if err == nil {
		return 0, "", false
	}
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.code, entry.name, true
		}
	}
	return 0, "", false
}
