// tx.go - Transaction-level API: nullifier/commitment derivation, proof
// assembly and verification, and batch aggregation.
//
// Create/verify/batch are pure functions of their inputs plus the
// deterministic hash collaborators, so independent transactions can be
// processed in parallel.

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"implementation/internal/logger"
	"implementation/internal/poseidon"
)

// PrivateTransaction is the publicly shareable transaction bundle. It never
// holds the plaintext amount or the sender secret.
type PrivateTransaction struct {
	EncryptedAmount string   `json:"encryptedAmount"`
	Proof           string   `json:"proof"`
	Nullifier       string   `json:"nullifier"`
	Commitment      string   `json:"commitment"`
	PublicInputs    []string `json:"publicInputs"`
}

// Batch is the result of aggregating transactions under one Merkle root.
type Batch struct {
	BatchProof string `json:"batchProof"`
	BatchRoot  string `json:"batchRoot"`
}

// Protocol owns the permutation hasher used for proof binding. It is
// stateless across calls; share one instance or build one per call.
type Protocol struct {
	hasher *poseidon.Hasher
	log    zerolog.Logger
}

// New constructs a Protocol with a freshly derived permutation hasher.
func New() *Protocol {
	return &Protocol{
		hasher: poseidon.New(),
		log:    logger.Logger().With().Str("component", "protocol").Logger(),
	}
}

// GenerateNullifier derives the spend nullifier from a sender address and
// secret: keccak256(address20 || secret).
func GenerateNullifier(address, secret string) []byte {
	return hashPacked(packAddress(address), []byte(secret))
}

// GenerateCommitment binds a recipient, amount, and nullifier:
// keccak256(recipient20 || amount32 || nullifier).
func GenerateCommitment(recipient string, amount *big.Int, nullifier []byte) []byte {
	return hashPacked(packAddress(recipient), packUint256(amount), nullifier)
}

// witnessInputs is the explicit optional-field bag for witness assembly.
// Nil / empty fields are omitted from the vector, so the witness length
// varies with what the caller supplied.
type witnessInputs struct {
	Amount     *big.Int
	Nullifier  []byte
	Commitment []byte
	SecretHash []byte
	From       string
	To         string
}

// vector assembles the witness: constant 1 first, then each supplied field
// in declaration order, byte fields as big-endian integers and addresses as
// their 20-byte integer value.
func (w witnessInputs) vector() []*big.Int {
	out := []*big.Int{big.NewInt(1)}
	if w.Amount != nil {
		out = append(out, new(big.Int).Set(w.Amount))
	}
	if len(w.Nullifier) > 0 {
		out = append(out, new(big.Int).SetBytes(w.Nullifier))
	}
	if len(w.Commitment) > 0 {
		out = append(out, new(big.Int).SetBytes(w.Commitment))
	}
	if len(w.SecretHash) > 0 {
		out = append(out, new(big.Int).SetBytes(w.SecretHash))
	}
	if w.From != "" {
		out = append(out, new(big.Int).SetBytes(packAddress(w.From)))
	}
	if w.To != "" {
		out = append(out, new(big.Int).SetBytes(packAddress(w.To)))
	}
	return out
}

// CreatePrivateTransaction derives the nullifier and commitment, encrypts
// the amount under the sender secret, and assembles the proof bundle.
func (p *Protocol) CreatePrivateTransaction(from, to string, amount *big.Int, secret string) (*PrivateTransaction, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("protocol: amount must be positive")
	}
	nullifier := GenerateNullifier(from, secret)
	commitment := GenerateCommitment(to, amount, nullifier)

	encAmount, err := EncryptAmount(amount.String(), secret)
	if err != nil {
		return nil, fmt.Errorf("protocol: amount encryption failed: %w", err)
	}

	witness := witnessInputs{
		Amount:     amount,
		Nullifier:  nullifier,
		Commitment: commitment,
		SecretHash: hashSecret(secret),
		From:       from,
		To:         to,
	}.vector()

	proof := p.buildProof(witness)
	proofJSON, err := proof.Marshal()
	if err != nil {
		return nil, fmt.Errorf("protocol: proof serialization failed: %w", err)
	}

	tx := &PrivateTransaction{
		EncryptedAmount: encAmount,
		Proof:           proofJSON,
		Nullifier:       hexEncode(nullifier),
		Commitment:      hexEncode(commitment),
		PublicInputs:    []string{hexEncode(nullifier), hexEncode(commitment)},
	}
	p.log.Debug().Str("nullifier", tx.Nullifier).Str("commitment", tx.Commitment).Msg("transaction created")
	return tx, nil
}

// buildProof embeds witness components positionally and binds the proof to
// the witness via PermutationHash(witness[1], witness[2]) in pi_c[1].
// Missing optional components embed as "0".
func (p *Protocol) buildProof(witness []*big.Int) *Proof {
	at := func(i int) *big.Int {
		if i < len(witness) {
			return witness[i]
		}
		return big.NewInt(0)
	}
	str := func(i int) string { return at(i).String() }

	binding := p.hasher.Hash([]*big.Int{at(1), at(2)})
	return &Proof{
		PiA:      []string{str(1), str(2), str(3)},
		PiB:      [][]string{{str(4), str(5)}, {str(6), str(0)}, {"1", "0"}},
		PiC:      []string{str(3), binding.String(), "1"},
		Protocol: ProtocolTag,
		Curve:    CurveTag,
	}
}

// VerifyPrivateTransaction checks a transaction bundle. It is a total
// function over arbitrary untrusted input: malformed JSON, bad shapes, and
// parse failures all yield false, never an error or panic.
func (p *Protocol) VerifyPrivateTransaction(tx *PrivateTransaction) (valid bool) {
	defer func() {
		if recover() != nil {
			valid = false
		}
	}()
	if err := p.checkTransaction(tx); err != nil {
		p.log.Debug().Err(err).Msg("transaction rejected")
		return false
	}
	return true
}

// checkTransaction is the tagged-reason core behind the boolean boundary.
func (p *Protocol) checkTransaction(tx *PrivateTransaction) error {
	if tx == nil {
		return errors.New("nil transaction")
	}
	proof, err := ParseProof(tx.Proof)
	if err != nil {
		return fmt.Errorf("malformed proof: %w", err)
	}
	if proof.Protocol != ProtocolTag {
		return fmt.Errorf("unexpected protocol tag %q", proof.Protocol)
	}
	if !proof.wellFormed() {
		return errors.New("malformed proof shape")
	}

	a0, ok := new(big.Int).SetString(proof.PiA[0], 10)
	if !ok {
		return fmt.Errorf("pi_a[0] %q is not an integer", proof.PiA[0])
	}
	a1, ok := new(big.Int).SetString(proof.PiA[1], 10)
	if !ok {
		return fmt.Errorf("pi_a[1] %q is not an integer", proof.PiA[1])
	}
	binding := p.hasher.Hash([]*big.Int{a0, a1})
	if binding.String() != proof.PiC[1] {
		return errors.New("binding tag mismatch")
	}

	for i, input := range tx.PublicInputs {
		v, ok := new(big.Int).SetString(strings.TrimPrefix(input, "0x"), 16)
		if !ok || v.Sign() <= 0 {
			return fmt.Errorf("public input %d %q is not a positive integer", i, input)
		}
	}
	return nil
}

// BatchTransactions reduces the commitments of all transactions to a single
// Merkle root and wraps it in a batch proof keyed on the root and the
// per-transaction (commitment, nullifier) pairs.
func (p *Protocol) BatchTransactions(txs []*PrivateTransaction) (*Batch, error) {
	if len(txs) == 0 {
		return nil, errors.New("protocol: empty batch")
	}
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaf, err := hexDecode(tx.Commitment)
		if err != nil {
			return nil, fmt.Errorf("protocol: transaction %d commitment: %w", i, err)
		}
		leaves[i] = leaf
	}
	root := merkleReduce(leaves)
	rootInt := new(big.Int).SetBytes(root)
	count := big.NewInt(int64(len(txs)))

	pair := func(i int) []string {
		if i >= len(txs) {
			return []string{"0", "0"}
		}
		cm, _ := hexDecode(txs[i].Commitment)
		nf, _ := hexDecode(txs[i].Nullifier)
		return []string{
			new(big.Int).SetBytes(cm).String(),
			new(big.Int).SetBytes(nf).String(),
		}
	}
	binding := p.hasher.Hash([]*big.Int{rootInt, count})
	proof := &Proof{
		PiA:      []string{rootInt.String(), count.String(), "1"},
		PiB:      [][]string{pair(0), pair(1), pair(2)},
		PiC:      []string{rootInt.String(), binding.String(), "1"},
		Protocol: ProtocolTag,
		Curve:    CurveTag,
	}
	proofJSON, err := proof.Marshal()
	if err != nil {
		return nil, fmt.Errorf("protocol: batch proof serialization failed: %w", err)
	}
	p.log.Debug().Int("transactions", len(txs)).Str("root", hexEncode(root)).Msg("batch assembled")
	return &Batch{BatchProof: proofJSON, BatchRoot: hexEncode(root)}, nil
}

// merkleReduce pairwise-hashes nodes level by level until one root remains,
// pairing an odd tail element with itself.
func merkleReduce(nodes [][]byte) []byte {
	if len(nodes) == 1 {
		return nodes[0]
	}
	next := make([][]byte, 0, (len(nodes)+1)/2)
	for i := 0; i < len(nodes); i += 2 {
		if i+1 < len(nodes) {
			next = append(next, hashPacked(nodes[i], nodes[i+1]))
		} else {
			next = append(next, hashPacked(nodes[i], nodes[i]))
		}
	}
	return merkleReduce(next)
}

// CreateMerkleProof walks the reduction of a supplied leaf list and records
// the sibling path for one leaf. Kept separate from the merkle package
// because batch proofs are produced without persisting a tree.
func CreateMerkleProof(leaves [][]byte, index int) ([][]byte, error) {
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("protocol: leaf %d of %d out of bounds", index, len(leaves))
	}
	var proof [][]byte
	current := leaves
	pos := index
	for len(current) > 1 {
		sibling := pos ^ 1
		if sibling >= len(current) {
			sibling = pos
		}
		proof = append(proof, current[sibling])
		next := make([][]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, hashPacked(current[i], current[i+1]))
			} else {
				next = append(next, hashPacked(current[i], current[i]))
			}
		}
		current = next
		pos /= 2
	}
	return proof, nil
}

// VerifyMerkleProof recomputes the path from leaf to root using the index
// parity at each level to order siblings.
func VerifyMerkleProof(leaf []byte, proof [][]byte, root []byte, index int) bool {
	current := leaf
	pos := index
	for _, sibling := range proof {
		if pos&1 == 1 {
			current = hashPacked(sibling, current)
		} else {
			current = hashPacked(current, sibling)
		}
		pos /= 2
	}
	return bytes.Equal(current, root)
}
