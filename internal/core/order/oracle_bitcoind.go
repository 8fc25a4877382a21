package order

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/oniongate/satstore/internal/core/domain"
)

// BitcoindOracle checks payment against a bitcoind node: the order is
// confirmed once the unspent outputs on its payment address, at the
// required confirmation depth, cover the satoshi amount. The funding txid
// becomes the transaction reference.
type BitcoindOracle struct {
	client  *rpcclient.Client
	params  *chaincfg.Params
	minConf int
}

// NewBitcoindOracle connects to the node over HTTP POST RPC, the same way
// the wallet tooling does.
func NewBitcoindOracle(host, user, pass string, params *chaincfg.Params, minConf int) (*BitcoindOracle, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         host,
		User:         user,
		Pass:         pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitcoind rpc client: %w", err)
	}
	if minConf < 1 {
		minConf = 1
	}
	return &BitcoindOracle{client: client, params: params, minConf: minConf}, nil
}

func (o *BitcoindOracle) Confirmed(_ context.Context, ord *domain.Order) (bool, string, error) {
	addr, err := btcutil.DecodeAddress(ord.BitcoinAddress, o.params)
	if err != nil {
		return false, "", fmt.Errorf("invalid order payment address %q: %w", ord.BitcoinAddress, err)
	}

	unspent, err := o.client.ListUnspentMinMaxAddresses(o.minConf, 9999999, []btcutil.Address{addr})
	if err != nil {
		return false, "", fmt.Errorf("listunspent failed: %w", err)
	}

	var received btcutil.Amount
	txRef := ""
	for _, utxo := range unspent {
		amount, err := btcutil.NewAmount(utxo.Amount)
		if err != nil {
			continue
		}
		received += amount
		if txRef == "" {
			txRef = utxo.TxID
		}
	}

	if int64(received) < ord.AmountSats {
		return false, "", nil
	}
	return true, txRef, nil
}

// Shutdown releases the RPC client.
func (o *BitcoindOracle) Shutdown() {
	o.client.Shutdown()
}
