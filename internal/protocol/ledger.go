// ledger.go - Append-only ledger of private transactions.
//
// Records nullifiers, commitments, and full transaction bundles; rejects a
// reused nullifier (double-spend) and persists as a single JSON file.
//
// NOTE: Ledger is not thread-safe by itself; use a sync.Mutex for concurrent
// access.

package protocol

import (
	"encoding/json"
	"errors"
	"os"

	"implementation/internal/merkle"
)

// Ledger is the canonical append-only record all participants share.
type Ledger struct {
	NullifierList  []string
	CommitmentList []string
	TxList         []*PrivateTransaction
}

// NewLedger creates a new, empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		NullifierList:  make([]string, 0),
		CommitmentList: make([]string, 0),
		TxList:         make([]*PrivateTransaction, 0),
	}
}

// AppendTx appends a verified transaction, rejecting a nullifier that was
// already spent.
func (l *Ledger) AppendTx(tx *PrivateTransaction) error {
	if l.HasNullifier(tx.Nullifier) {
		return errors.New("double-spend detected: nullifier already in ledger")
	}
	l.NullifierList = append(l.NullifierList, tx.Nullifier)
	l.CommitmentList = append(l.CommitmentList, tx.Commitment)
	l.TxList = append(l.TxList, tx)
	return nil
}

// HasNullifier returns true if the nullifier is already in the ledger.
func (l *Ledger) HasNullifier(nf string) bool {
	for _, s := range l.NullifierList {
		if s == nf {
			return true
		}
	}
	return false
}

// HasCommitment returns true if the commitment is already in the ledger.
func (l *Ledger) HasCommitment(cm string) bool {
	for _, c := range l.CommitmentList {
		if c == cm {
			return true
		}
	}
	return false
}

// GetTxs returns all transactions in the ledger.
func (l *Ledger) GetTxs() []*PrivateTransaction {
	return l.TxList
}

// Root builds a Merkle tree over the recorded commitments and returns its
// root, or nil for an empty ledger.
func (l *Ledger) Root() ([]byte, error) {
	if len(l.CommitmentList) == 0 {
		return nil, nil
	}
	leaves := make([][]byte, len(l.CommitmentList))
	for i, cm := range l.CommitmentList {
		leaf, err := hexDecode(cm)
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}
	tree := merkle.New(leaves, 0, func(left, right []byte) []byte {
		return hashPacked(left, right)
	})
	return tree.Root(), nil
}

// SaveToFile saves the ledger as indented JSON, overwriting any existing
// file.
func (l *Ledger) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

// LoadLedgerFromFile loads a ledger from a JSON file.
func LoadLedgerFromFile(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var l Ledger
	if err := json.NewDecoder(f).Decode(&l); err != nil {
		return nil, err
	}
	return &l, nil
}
