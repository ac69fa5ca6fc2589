package stellar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/support/render/problem"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

const testIssuerSeed = "SCZANGBA5YHTNYVVV4C3U252E2B6P6F5T3U6MM63WBSBZATAQI3EBTQ4"

func testClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{
		HorizonURL:        "https://horizon-testnet.stellar.org",
		NetworkPassphrase: "Test SDF Network ; September 2015",
		IssuerSeed:        testIssuerSeed,
		SubmitTimeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsBadSeed(t *testing.T) {
	_, err := New(Config{IssuerSeed: "not-a-seed"})
	if err == nil {
		t.Fatal("expected error for malformed seed")
	}
}

func TestSubmitRejectsMalformedDestination(t *testing.T) {
	c := testClient(t)

	_, err := c.Submit(context.Background(), domain.ChainOp{
		OpRef:     "ref-1",
		Kind:      domain.ChainOpMint,
		AssetCode: "WTCH1",
		ToKey:     "definitely-not-a-stellar-key",
	})
	if !errors.Is(err, domain.ErrChainRejected) {
		t.Fatalf("err = %v, want ErrChainRejected", err)
	}
}

func TestSubmitRejectsOversizedAssetCode(t *testing.T) {
	c := testClient(t)

	_, err := c.Submit(context.Background(), domain.ChainOp{
		OpRef:     "ref-2",
		Kind:      domain.ChainOpMint,
		AssetCode: "WAYTOOLONGASSETCODE",
		ToKey:     c.IssuerAddress(),
	})
	if !errors.Is(err, domain.ErrChainRejected) {
		t.Fatalf("err = %v, want ErrChainRejected", err)
	}
}

func TestMapHorizonError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{
			name:   "bad request is fatal",
			err:    &horizonclient.Error{Problem: problem.P{Status: 400, Title: "Bad Request"}},
			target: domain.ErrChainRejected,
		},
		{
			name:   "server error is retryable",
			err:    &horizonclient.Error{Problem: problem.P{Status: 503, Title: "Service Unavailable"}},
			target: domain.ErrChainUnavailable,
		},
		{
			name:   "rate limit is retryable",
			err:    &horizonclient.Error{Problem: problem.P{Status: 429, Title: "Too Many Requests"}},
			target: domain.ErrChainUnavailable,
		},
		{
			name:   "transport failure is retryable",
			err:    errors.New("dial tcp: connection refused"),
			target: domain.ErrChainUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapHorizonError("test", tt.err)
			if !errors.Is(got, tt.target) {
				t.Fatalf("mapHorizonError(%v) = %v, want %v", tt.err, got, tt.target)
			}
		})
	}
}

func TestAssetCode(t *testing.T) {
	tests := []struct {
		prefix string
		serial string
		want   string
	}{
		{"WT", "116500LN", "WT116500LN"},
		{"WT", "sn-0042/a", "WTSN0042A"},
		{"WT", "ABCDEFGHIJKLMNOP", "WTABCDEFGHIJ"},
		{"WT", "", "WT"},
	}

	for _, tt := range tests {
		if got := AssetCode(tt.prefix, tt.serial); got != tt.want {
			t.Errorf("AssetCode(%q, %q) = %q, want %q", tt.prefix, tt.serial, got, tt.want)
		}
	}
}
