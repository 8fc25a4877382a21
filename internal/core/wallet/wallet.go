// Package wallet provides payment address provisioning. The core only
// records whatever address it is given; key management stays outside.
package wallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// StaticWallet hands every order the same configured receive address.
// A derivation-per-order wallet can replace it behind the same interface.
type StaticWallet struct {
	address string
}

// NewStaticWallet validates the configured address against the chain
// parameters before accepting it.
func NewStaticWallet(address string, params *chaincfg.Params) (*StaticWallet, error) {
	if _, err := btcutil.DecodeAddress(address, params); err != nil {
		return nil, fmt.Errorf("invalid wallet address %q for network %s: %w", address, params.Name, err)
	}
	return &StaticWallet{address: address}, nil
}

func (w *StaticWallet) PaymentAddress(_ context.Context) (string, error) {
	return w.address, nil
}

// NetworkParams maps a config network name to chain parameters.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", network)
	}
}
