package chain

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/plexora/meterpay/internal/pkg/env"
)

// Mode is the rail's operating mode, fixed at construction. Simulated mode
// fabricates references without moving funds; tests and callers can force
// either mode deterministically.
type Mode string

const (
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

var (
	// ErrSubmissionFailed means the transaction never reached the network.
	// Safe to retry the whole batch.
	ErrSubmissionFailed = errors.New("chain submission failed")
	// ErrConfirmationTimeout means the transaction was submitted but no
	// confirmation was observed in time. The transfer may still land;
	// callers must not treat this as "money not moved".
	ErrConfirmationTimeout = errors.New("chain confirmation timeout")
)

const (
	defaultConfirmTimeout = 90 * time.Second
	defaultPollInterval   = 3 * time.Second
)

// Rail constructs, signs, submits and confirms settlement transactions.
type Rail struct {
	mode    Mode
	signer  ed25519.PrivateKey
	address string
	gateway *GatewayClient

	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// NewRailFromEnv builds the rail from configuration. Without a signing key
// the rail runs simulated: syntactically valid references, no funds moved.
func NewRailFromEnv() (*Rail, error) {
	keyHex := strings.TrimSpace(env.GetEnv("CHAIN_SIGNING_KEY", ""))
	gatewayURL := strings.TrimSpace(env.GetEnv("CHAIN_GATEWAY_URL", ""))

	if keyHex == "" {
		log.Warn("[Chain] No signing key configured, settlement rail runs in simulated mode")
		return &Rail{
			mode:           ModeSimulated,
			confirmTimeout: defaultConfirmTimeout,
			pollInterval:   defaultPollInterval,
		}, nil
	}
	if gatewayURL == "" {
		return nil, errors.New("CHAIN_GATEWAY_URL is required when CHAIN_SIGNING_KEY is set")
	}

	seed, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAIN_SIGNING_KEY: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid CHAIN_SIGNING_KEY: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	signer := ed25519.NewKeyFromSeed(seed)

	return &Rail{
		mode:           ModeLive,
		signer:         signer,
		address:        hex.EncodeToString(signer.Public().(ed25519.PublicKey)),
		gateway:        NewGatewayClient(gatewayURL),
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
	}, nil
}

// NewSimulatedRail returns a rail fixed to simulated mode.
func NewSimulatedRail() *Rail {
	return &Rail{mode: ModeSimulated}
}

// Mode exposes the operating mode so callers can distinguish genuine
// submissions from fabricated references.
func (r *Rail) Mode() Mode {
	return r.mode
}

// Submit executes one settlement transfer carrying the payload as auxiliary
// data and blocks until at least one confirmation. The exact submitted
// payload bytes are returned for archival. On ErrConfirmationTimeout the
// returned reference is still valid: the transaction was submitted.
func (r *Rail) Submit(ctx context.Context, userID uint, items []BatchItem, totalCents int64) (string, []byte, error) {
	payload := NewPayload(userID, items, totalCents, time.Now())
	if err := payload.Verify(); err != nil {
		return "", nil, err
	}
	raw, err := payload.Encode()
	if err != nil {
		return "", nil, err
	}

	if r.mode == ModeSimulated {
		ref, err := simulatedTxHash()
		if err != nil {
			return "", nil, err
		}
		log.Infof("[Chain] Simulated settlement for user %d: %s", userID, ref)
		return ref, raw, nil
	}

	sig := ed25519.Sign(r.signer, raw)
	hash, err := r.gateway.SubmitTransaction(ctx, SubmitRequest{
		From:      r.address,
		To:        r.address,
		Data:      hex.EncodeToString(raw),
		Signature: hex.EncodeToString(sig),
		PublicKey: r.address,
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	if err := r.awaitConfirmation(ctx, hash); err != nil {
		return hash, raw, err
	}
	return hash, raw, nil
}

// Confirmed reports whether the transaction has at least one confirmation.
// Single check, no polling; used to resolve settlements that timed out
// waiting for confirmation. Simulated references are always confirmed.
func (r *Rail) Confirmed(ctx context.Context, ref string) (bool, error) {
	if r.mode == ModeSimulated {
		return true, nil
	}
	confirmations, err := r.gateway.Confirmations(ctx, ref)
	if err != nil {
		return false, err
	}
	return confirmations >= 1, nil
}

// awaitConfirmation polls until the transaction has at least one
// confirmation. This is the rail's only suspension point.
func (r *Rail) awaitConfirmation(ctx context.Context, hash string) error {
	deadline := time.Now().Add(r.confirmTimeout)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		confirmations, err := r.gateway.Confirmations(ctx, hash)
		if err != nil {
			log.Warnf("[Chain] Confirmation poll for %s failed: %v", hash, err)
		} else if confirmations >= 1 {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: tx %s unconfirmed after %s", ErrConfirmationTimeout, hash, r.confirmTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: tx %s: %v", ErrConfirmationTimeout, hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// simulatedTxHash fabricates a syntactically valid, non-functional
// transaction reference.
func simulatedTxHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}
