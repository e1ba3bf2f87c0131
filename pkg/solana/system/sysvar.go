package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// SysvarOwner owns every sysvar account
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/sysvar/mod.rs#L24
var SysvarOwner ed25519.PublicKey

// RentSysVar points to the system variable "Rent"
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
var RentSysVar ed25519.PublicKey

// NativeLoader owns every natively implemented program
var NativeLoader ed25519.PublicKey

func init() {
	SysvarOwner = mustBase58Decode("Sysvar1111111111111111111111111111111111111")
	RentSysVar = mustBase58Decode("SysvarRent111111111111111111111111111111111")
	NativeLoader = mustBase58Decode("NativeLoader1111111111111111111111111111111")
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
