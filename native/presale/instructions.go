package presale

import (
	"encoding/json"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

func newMessage(programID crypto.Identity, instruction string, accounts []types.AccountMeta, args any, nonce uint64) (types.Message, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return types.Message{}, err
	}
	return types.Message{
		Program:     programID,
		Instruction: instruction,
		Accounts:    accounts,
		Data:        data,
		Nonce:       nonce,
	}, nil
}

// NewInitializeMessage builds an unsigned initialize message paid for by admin.
func NewInitializeMessage(programID, admin crypto.Identity, args InitializeArgs, nonce uint64) (types.Message, error) {
	return newMessage(programID, InstructionInitialize, []types.AccountMeta{
		{Key: admin, Signer: true, Writable: true},
		{Key: ConfigAddress(programID), Writable: true},
	}, args, nonce)
}

// NewPurchaseStableMessage builds an unsigned stable purchase for buyer. The
// funding accounts are the associated token accounts of the buyer and the
// treasury for stableMint.
func NewPurchaseStableMessage(programID, buyer, treasury, stableMint crypto.Identity, args PurchaseStableArgs, nonce uint64) (types.Message, error) {
	return newMessage(programID, InstructionPurchaseStable, []types.AccountMeta{
		{Key: buyer, Signer: true},
		{Key: crypto.DeriveTokenAccount(buyer, stableMint), Writable: true},
		{Key: crypto.DeriveTokenAccount(treasury, stableMint), Writable: true},
		{Key: ConfigAddress(programID)},
		{Key: stableMint},
	}, args, nonce)
}

// NewPurchaseNativeMessage builds an unsigned native purchase for buyer.
func NewPurchaseNativeMessage(programID, buyer, treasury crypto.Identity, args PurchaseNativeArgs, nonce uint64) (types.Message, error) {
	return newMessage(programID, InstructionPurchaseNative, []types.AccountMeta{
		{Key: buyer, Signer: true, Writable: true},
		{Key: treasury, Writable: true},
		{Key: ConfigAddress(programID)},
	}, args, nonce)
}

// NewUpdateConfigMessage builds an unsigned configuration update by admin.
func NewUpdateConfigMessage(programID, admin crypto.Identity, args UpdateConfigArgs, nonce uint64) (types.Message, error) {
	return newMessage(programID, InstructionUpdateConfig, []types.AccountMeta{
		{Key: admin, Signer: true},
		{Key: ConfigAddress(programID), Writable: true},
	}, args, nonce)
}
