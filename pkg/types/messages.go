package types

import "encoding/json"

// SignRequestV1 is the JSON body accepted by POST /sign
type SignRequestV1 struct {
	ID          int64               `json:"id"`
	Kind        SignRequestKind     `json:"kind"`
	Send        bool                `json:"send"`
	KeyHandle   int                 `json:"keyHandle"`
	Pin         string              `json:"pin,omitempty"`
	Data        string              `json:"data,omitempty"`
	TypedData   json.RawMessage     `json:"typedData,omitempty"`
	Transaction *TransactionRequest `json:"transaction,omitempty"`
}

// SignResponseV1 is either an approval carrying the result or a rejection with a reason
type SignResponseV1 struct {
	ID               int64  `json:"id"`
	Approved         bool   `json:"approved"`
	Result           string `json:"result,omitempty"`
	Signature        string `json:"signature,omitempty"`
	SigCounter       string `json:"sigCounter,omitempty"`
	GlobalSigCounter string `json:"globalSigCounter,omitempty"`
	JournalID        string `json:"journalId,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// PublicKeyResponseV1 is returned by GET /pubkey
type PublicKeyResponseV1 struct {
	KeyHandle int    `json:"keyHandle"`
	PublicKey string `json:"publicKey"`
	Address   string `json:"address"`
}
