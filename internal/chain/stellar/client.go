// Package stellar submits token operations to the Stellar network through
// Horizon. Each provenance step is a payment of one unit of the watch's
// asset from the platform issuer, tagged with the operation reference so
// resubmissions are traceable on chain.
package stellar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// Config holds connection parameters for the Stellar client.
type Config struct {
	HorizonURL        string
	NetworkPassphrase string
	IssuerSeed        string
	SubmitTimeout     time.Duration
}

// Client implements domain.ChainClient against Horizon.
type Client struct {
	horizon    *horizonclient.Client
	issuer     *keypair.Full
	passphrase string
}

// New creates a Client and parses the issuer signing key. It does not touch
// the network.
func New(cfg Config) (*Client, error) {
	issuer, err := keypair.ParseFull(cfg.IssuerSeed)
	if err != nil {
		return nil, fmt.Errorf("stellar: parse issuer seed: %w", err)
	}

	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := &horizonclient.Client{
		HorizonURL: cfg.HorizonURL,
		HTTP:       &http.Client{Timeout: timeout},
	}

	return &Client{
		horizon:    hc,
		issuer:     issuer,
		passphrase: cfg.NetworkPassphrase,
	}, nil
}

// IssuerAddress returns the public key of the platform issuing account.
func (c *Client) IssuerAddress() string {
	return c.issuer.Address()
}

// Submit builds, signs, and submits the transaction for one token operation.
// The destination key is validated before any network traffic so a malformed
// key fails fast with ErrChainRejected. Transient Horizon failures map to
// ErrChainUnavailable and are safe to resubmit with the same OpRef.
func (c *Client) Submit(ctx context.Context, op domain.ChainOp) (string, error) {
	if !strkey.IsValidEd25519PublicKey(op.ToKey) {
		return "", fmt.Errorf("stellar: destination %s: %w", op.ToKey, domain.ErrChainRejected)
	}
	if op.AssetCode == "" || len(op.AssetCode) > 12 {
		return "", fmt.Errorf("stellar: asset code %q: %w", op.AssetCode, domain.ErrChainRejected)
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("stellar: submit %s: %w", op.OpRef, err)
	}

	account, err := c.horizon.AccountDetail(horizonclient.AccountRequest{
		AccountID: c.issuer.Address(),
	})
	if err != nil {
		return "", mapHorizonError("load issuer account", err)
	}

	asset := txnbuild.CreditAsset{Code: op.AssetCode, Issuer: c.issuer.Address()}

	ops := []txnbuild.Operation{
		&txnbuild.ManageData{
			Name:  "op:" + string(op.Kind),
			Value: []byte(op.OpRef),
		},
		&txnbuild.Payment{
			Destination: op.ToKey,
			Amount:      "1",
			Asset:       asset,
		},
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              txnbuild.MinBaseFee,
		Memo:                 txnbuild.MemoHash(op.MemoHash),
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(300),
		},
	})
	if err != nil {
		return "", fmt.Errorf("stellar: build transaction %s: %w", op.OpRef, err)
	}

	tx, err = tx.Sign(c.passphrase, c.issuer)
	if err != nil {
		return "", fmt.Errorf("stellar: sign transaction %s: %w", op.OpRef, err)
	}

	resp, err := c.horizon.SubmitTransaction(tx)
	if err != nil {
		return "", mapHorizonError("submit "+op.OpRef, err)
	}
	if !resp.Successful {
		return "", fmt.Errorf("stellar: submit %s: result %s: %w", op.OpRef, resp.ResultXdr, domain.ErrChainRejected)
	}

	return resp.Hash, nil
}

// mapHorizonError classifies a Horizon failure. Server-side and transport
// problems are retryable; client-side rejections are fatal.
func mapHorizonError(action string, err error) error {
	if herr := horizonclient.GetError(err); herr != nil {
		status := herr.Problem.Status
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return fmt.Errorf("stellar: %s: %s: %w", action, herr.Problem.Title, domain.ErrChainRejected)
		}
		return fmt.Errorf("stellar: %s: %s: %w", action, herr.Problem.Title, domain.ErrChainUnavailable)
	}
	// Transport-level failures (timeouts, refused connections) are transient.
	return fmt.Errorf("stellar: %s: %v: %w", action, err, domain.ErrChainUnavailable)
}

// AssetCode derives the deterministic asset code for a watch serial. The
// serial is uppercased, stripped to alphanumerics, and truncated so the code
// fits Stellar's 12-character alphanumeric limit.
func AssetCode(prefix, serial string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, r := range strings.ToUpper(serial) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if len(code) > 12 {
		code = code[:12]
	}
	return code
}

// Compile-time interface check.
var _ domain.ChainClient = (*Client)(nil)
