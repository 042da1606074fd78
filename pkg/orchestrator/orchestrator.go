// Package orchestrator runs a signing request end to end against a single
// secure element: digest, external signature, verification, recovery and,
// for transactions, assembly and broadcast.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Layr-Labs/secora-signer-go/pkg/chainState"
	"github.com/Layr-Labs/secora-signer-go/pkg/digest"
	"github.com/Layr-Labs/secora-signer-go/pkg/metrics"
	"github.com/Layr-Labs/secora-signer-go/pkg/persistence"
	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/signature"
	"github.com/Layr-Labs/secora-signer-go/pkg/transactionAssembler"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/Layr-Labs/secora-signer-go/pkg/util"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	State_AwaitingDigest            State = "AwaitingDigest"
	State_AwaitingExternalSignature State = "AwaitingExternalSignature"
	State_Verifying                 State = "Verifying"
	State_Normalizing               State = "Normalizing"
	State_Assembling                State = "Assembling"
	State_Done                      State = "Done"
	State_Failed                    State = "Failed"
)

// BusyPolicy decides what happens to a request that arrives while another
// one holds the secure element.
type BusyPolicy string

const (
	// BusyPolicy_Reject fails immediately with ErrSignerBusy
	BusyPolicy_Reject BusyPolicy = "reject"
	// BusyPolicy_Queue waits for the secure element until the request context ends
	BusyPolicy_Queue BusyPolicy = "queue"
)

const DefaultSignerTimeout = 60 * time.Second

type Config struct {
	ChainID *big.Int

	// SignerTimeout bounds each secure element command, the wait for a tap included
	SignerTimeout time.Duration

	BusyPolicy BusyPolicy

	// OnTransition, when set, observes every state change of every request
	OnTransition func(requestID int64, state State)
}

type Orchestrator struct {
	secureElement secureElement.ISecureElement
	chainState    chainState.IChainStateProvider
	assembler     *transactionAssembler.TransactionAssembler
	journal       persistence.ISigningJournal
	metrics       *metrics.Metrics
	config        *Config
	logger        *zap.Logger

	// slot holds a token while a request owns the secure element
	slot chan struct{}
}

// NewOrchestrator wires the collaborators. cs, journal and m may be nil:
// without a chain state provider transactions are rejected, without a
// journal nothing is recorded.
func NewOrchestrator(
	se secureElement.ISecureElement,
	cs chainState.IChainStateProvider,
	journal persistence.ISigningJournal,
	m *metrics.Metrics,
	cfg *Config,
	logger *zap.Logger,
) *Orchestrator {
	c := *cfg
	if c.ChainID == nil {
		c.ChainID = big.NewInt(1)
	}
	if c.SignerTimeout <= 0 {
		c.SignerTimeout = DefaultSignerTimeout
	}
	if c.BusyPolicy == "" {
		c.BusyPolicy = BusyPolicy_Reject
	}

	o := &Orchestrator{
		secureElement: se,
		chainState:    cs,
		journal:       journal,
		metrics:       m,
		config:        &c,
		logger:        logger,
		slot:          make(chan struct{}, 1),
	}
	if cs != nil {
		o.assembler = transactionAssembler.NewTransactionAssembler(cs, c.ChainID, logger)
	}
	return o
}

func (o *Orchestrator) ChainID() *big.Int {
	return new(big.Int).Set(o.config.ChainID)
}

func (o *Orchestrator) acquire(ctx context.Context) error {
	if o.config.BusyPolicy == BusyPolicy_Queue {
		select {
		case o.slot <- struct{}{}:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: gave up waiting: %v", types.ErrSignerBusy, ctx.Err())
		}
	}
	select {
	case o.slot <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("%w: another signing operation is in flight", types.ErrSignerBusy)
	}
}

func (o *Orchestrator) release() {
	<-o.slot
}

// signerError maps secure element failures; a card that never answered is
// SignerUnavailable, anything else is passed through unchanged.
func signerError(err error) error {
	if errors.Is(err, secureElement.ErrNoCardPresented) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", types.ErrSignerUnavailable, err)
	}
	return err
}

func (o *Orchestrator) publicKey(ctx context.Context, keyHandle int) (*secp256k1.PublicKey, error) {
	seCtx, cancel := context.WithTimeout(ctx, o.config.SignerTimeout)
	defer cancel()

	raw, err := o.secureElement.GetPublicKey(seCtx, keyHandle)
	if err != nil {
		return nil, signerError(err)
	}
	return util.ParsePublicKey(raw)
}

// PublicKey reads the public key of keyHandle and the address it controls.
// It takes the secure element like a signing request does.
func (o *Orchestrator) PublicKey(ctx context.Context, keyHandle int) (*secp256k1.PublicKey, common.Address, error) {
	if err := o.acquire(ctx); err != nil {
		o.countBusy(err)
		return nil, common.Address{}, err
	}
	defer o.release()

	pub, err := o.publicKey(ctx, keyHandle)
	if err != nil {
		return nil, common.Address{}, err
	}
	return pub, util.PublicKeyToAddress(pub), nil
}

// request is the mutable bookkeeping for one run of Sign
type request struct {
	req    *types.SignRequest
	state  State
	result *types.SignResult
}

func (o *Orchestrator) transition(r *request, s State) {
	r.state = s
	o.logger.Debug("Signing request transition",
		zap.Int64("requestId", r.req.ID),
		zap.String("state", string(s)),
	)
	if o.config.OnTransition != nil {
		o.config.OnTransition(r.req.ID, s)
	}
}

// Sign runs req to completion. Every failure is terminal; the returned
// error carries one of the kinds of types.ErrorKind.
func (o *Orchestrator) Sign(ctx context.Context, req *types.SignRequest) (*types.SignResult, error) {
	start := time.Now()
	r := &request{
		req: req,
		result: &types.SignResult{
			RequestID: req.ID,
			JournalID: uuid.New().String(),
			Kind:      req.Kind,
		},
	}

	err := o.run(ctx, r)

	if o.metrics != nil {
		o.metrics.SignDuration.Observe(time.Since(start).Seconds())
	}
	failedState := r.state
	if err != nil {
		o.transition(r, State_Failed)
		o.logger.Warn("Signing request failed",
			zap.Int64("requestId", req.ID),
			zap.String("kind", req.Kind.String()),
			zap.String("state", string(failedState)),
			zap.String("errorKind", types.ErrorKind(err)),
			zap.Error(err),
		)
		o.countOutcome(req.Kind, err)
		o.record(r, failedState, err)
		return nil, err
	}

	o.transition(r, State_Done)
	o.logger.Info("Signing request approved",
		zap.Int64("requestId", req.ID),
		zap.String("kind", req.Kind.String()),
		zap.String("journalId", r.result.JournalID),
	)
	o.countOutcome(req.Kind, nil)
	o.record(r, "", nil)
	return r.result, nil
}

func (o *Orchestrator) run(ctx context.Context, r *request) error {
	req := r.req
	o.transition(r, State_AwaitingDigest)

	// Everything that can be rejected without the card is checked first
	var parsedTx *transactionAssembler.ParsedTransaction
	switch req.Kind {
	case types.SignRequestKind_RawMessage, types.SignRequestKind_PersonalMessage, types.SignRequestKind_TypedData:
	case types.SignRequestKind_Transaction:
		if o.assembler == nil {
			return fmt.Errorf("%w: no chain state provider configured", types.ErrUnsupportedSignRequest)
		}
		var err error
		if parsedTx, err = transactionAssembler.ParseTransactionRequest(req.Transaction); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", types.ErrUnsupportedSignRequest, req.Kind)
	}

	in := &digest.Input{
		Kind:      req.Kind,
		Payload:   req.Payload,
		TypedData: req.TypedData,
		ChainID:   o.config.ChainID,
	}
	var d []byte
	if parsedTx == nil {
		var err error
		if d, err = digest.Build(in); err != nil {
			return err
		}
	}

	if err := o.acquire(ctx); err != nil {
		o.countBusy(err)
		return err
	}
	defer o.release()

	pub, err := o.publicKey(ctx, req.KeyHandle)
	if err != nil {
		return err
	}

	// transaction digests need the sender's nonce, known once the key is
	var fields *types.RawTransactionFields
	if parsedTx != nil {
		if fields, err = o.assembler.Assemble(ctx, util.PublicKeyToAddress(pub), parsedTx); err != nil {
			return err
		}
		in.Transaction = fields
		if d, err = digest.Build(in); err != nil {
			return err
		}
	}
	r.result.Digest = d

	o.transition(r, State_AwaitingExternalSignature)
	seCtx, cancel := context.WithTimeout(ctx, o.config.SignerTimeout)
	raw, counters, err := o.secureElement.Sign(seCtx, req.KeyHandle, d, req.Pin)
	cancel()
	if err != nil {
		return signerError(err)
	}
	r.result.Counters = counters

	o.transition(r, State_Verifying)
	parsed, err := signature.ParseAndVerify(raw, d, pub)
	if err != nil {
		return err
	}

	if fields == nil {
		o.transition(r, State_Normalizing)
		canonical, err := signature.Canonicalize(parsed, d, pub)
		if err != nil {
			return err
		}
		r.result.Signature = canonical.WithOffset(types.MessageRecoveryOffset)
		return nil
	}

	o.transition(r, State_Assembling)
	canonical, err := signature.Canonicalize(parsed, d, pub)
	if err != nil {
		return err
	}
	signedTx, err := o.assembler.Serialize(fields, canonical)
	if err != nil {
		return err
	}
	r.result.Signature = canonical
	r.result.RawTransaction = signedTx

	if req.Send {
		hash, err := o.chainState.Broadcast(ctx, signedTx)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrBroadcastFailed, err)
		}
		r.result.TxHash = &hash
	}
	return nil
}

func (o *Orchestrator) countBusy(err error) {
	if o.metrics != nil && errors.Is(err, types.ErrSignerBusy) {
		o.metrics.SignerBusyTotal.Inc()
	}
}

func (o *Orchestrator) countOutcome(kind types.SignRequestKind, err error) {
	if o.metrics == nil {
		return
	}
	if err != nil {
		o.metrics.SignRequestsTotal.WithLabelValues(kind.String(), metrics.Outcome_Rejected).Inc()
		o.metrics.SignRejectionsTotal.WithLabelValues(types.ErrorKind(err)).Inc()
		return
	}
	o.metrics.SignRequestsTotal.WithLabelValues(kind.String(), metrics.Outcome_Approved).Inc()
}

// record writes the journal entry. A failed write is logged and counted but
// never changes the outcome returned to the caller.
func (o *Orchestrator) record(r *request, failedState State, err error) {
	if o.journal == nil {
		return
	}
	rec := &persistence.SigningRecord{
		ID:        r.result.JournalID,
		RequestID: r.req.ID,
		Kind:      r.req.Kind,
		KeyHandle: r.req.KeyHandle,
		Approved:  err == nil,
		CreatedAt: time.Now().UnixMilli(),
	}
	if r.result.Digest != nil {
		rec.Digest = types.EncodeHex(r.result.Digest)
	}
	if c := r.result.Counters; c != nil {
		rec.SigCounter = types.EncodeHex(c.SigCounter)
		rec.GlobalSigCounter = types.EncodeHex(c.GlobalSigCounter)
	}
	if err != nil {
		rec.ErrorKind = types.ErrorKind(err)
		rec.Reason = err.Error()
		rec.FailedState = string(failedState)
	} else {
		rec.Result = r.result.Result()
	}

	if werr := o.journal.SaveRecord(rec); werr != nil {
		o.logger.Error("Failed to write signing record",
			zap.String("journalId", rec.ID),
			zap.Int64("requestId", rec.RequestID),
			zap.Error(werr),
		)
		if o.metrics != nil {
			o.metrics.JournalWriteFailures.Inc()
		}
	}
}
