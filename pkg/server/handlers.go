package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Layr-Labs/secora-signer-go/pkg/config"
	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/Layr-Labs/secora-signer-go/pkg/util"
	"go.uber.org/zap"
)

// handleSign handles the /sign endpoint. Signing failures are answered with a
// rejection body, not an HTTP error.
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body types.SignRequestV1
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	req, err := s.toSignRequest(&body)
	if err != nil {
		s.writeJSON(w, rejection(body.ID, err))
		return
	}

	res, err := s.orchestrator.Sign(r.Context(), req)
	if err != nil {
		s.writeJSON(w, rejection(body.ID, err))
		return
	}

	resp := &types.SignResponseV1{
		ID:        body.ID,
		Approved:  true,
		Result:    res.Result(),
		Signature: types.EncodeHex(res.SignatureWithMessageOffset()),
		JournalID: res.JournalID,
	}
	if res.Counters != nil {
		resp.SigCounter = types.EncodeHex(res.Counters.SigCounter)
		resp.GlobalSigCounter = types.EncodeHex(res.Counters.GlobalSigCounter)
	}
	s.writeJSON(w, resp)
}

func (s *Server) toSignRequest(body *types.SignRequestV1) (*types.SignRequest, error) {
	req := &types.SignRequest{
		ID:          body.ID,
		Kind:        body.Kind,
		KeyHandle:   body.KeyHandle,
		TypedData:   body.TypedData,
		Transaction: body.Transaction,
		Send:        body.Send,
	}
	var err error
	if body.Pin != "" {
		if req.Pin, err = util.DecodeHexBytes(body.Pin); err != nil {
			return nil, fmt.Errorf("pin: %w", err)
		}
	}
	if body.Data != "" {
		if req.Payload, err = util.DecodeHexBytes(body.Data); err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
	}

	if req.Kind == types.SignRequestKind_Transaction {
		chainID := s.orchestrator.ChainID()
		if !chainID.IsUint64() || !config.IsSupportedChainId(chainID.Uint64()) {
			return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedChain, chainID.String())
		}
	}
	return req, nil
}

func rejection(id int64, err error) *types.SignResponseV1 {
	return &types.SignResponseV1{
		ID:       id,
		Approved: false,
		Reason:   fmt.Sprintf("%s: %s", types.ErrorKind(err), err.Error()),
	}
}

// handleGetPublicKey handles GET /pubkey?keyHandle=N
func (s *Server) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keyHandle, err := strconv.Atoi(r.URL.Query().Get("keyHandle"))
	if err != nil || keyHandle < 0 {
		http.Error(w, "keyHandle must be a non-negative integer", http.StatusBadRequest)
		return
	}

	pub, addr, err := s.orchestrator.PublicKey(r.Context(), keyHandle)
	if err != nil {
		s.logger.Sugar().Warnw("Failed to read public key", "keyHandle", keyHandle, "error", err)
		http.Error(w, fmt.Sprintf("%s: %s", types.ErrorKind(err), err.Error()), statusFor(err))
		return
	}

	s.writeJSON(w, &types.PublicKeyResponseV1{
		KeyHandle: keyHandle,
		PublicKey: types.EncodeHex(pub.SerializeUncompressed()),
		Address:   addr.Hex(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, secureElement.ErrUnknownKey):
		return http.StatusNotFound
	case errors.Is(err, types.ErrSignerBusy):
		return http.StatusConflict
	case errors.Is(err, types.ErrSignerUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}

	records, err := s.journal.ListRecords()
	if err != nil {
		s.logger.Error("Failed to list signing records", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, records)
}

// handleGetJournalRecord handles GET /journal/{id}
func (s *Server) handleGetJournalRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/journal/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "journal id is required", http.StatusBadRequest)
		return
	}

	record, err := s.journal.LoadRecord(id)
	if err != nil {
		s.logger.Error("Failed to load signing record", zap.String("journalId", id), zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, record)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.journal != nil {
		if err := s.journal.HealthCheck(); err != nil {
			http.Error(w, fmt.Sprintf("journal: %v", err), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
