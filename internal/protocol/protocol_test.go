package protocol

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"implementation/internal/merkle"
)

const (
	fromAddr = "0x1111111111111111111111111111111111111111"
	toAddr   = "0x2222222222222222222222222222222222222222"
)

func TestDerivation(t *testing.T) {
	t.Run("nullifier deterministic", func(t *testing.T) {
		n1 := GenerateNullifier(fromAddr, "secret1")
		n2 := GenerateNullifier(fromAddr, "secret1")
		require.Equal(t, n1, n2)
		require.Len(t, n1, 32)

		require.NotEqual(t, n1, GenerateNullifier(fromAddr, "secret2"))
		require.NotEqual(t, n1, GenerateNullifier(toAddr, "secret1"))
	})

	t.Run("commitment binds all inputs", func(t *testing.T) {
		nf := GenerateNullifier(fromAddr, "secret1")
		cm := GenerateCommitment(toAddr, big.NewInt(100), nf)
		require.Len(t, cm, 32)
		require.Equal(t, cm, GenerateCommitment(toAddr, big.NewInt(100), nf))

		require.NotEqual(t, cm, GenerateCommitment(toAddr, big.NewInt(101), nf))
		require.NotEqual(t, cm, GenerateCommitment(fromAddr, big.NewInt(100), nf))
		require.NotEqual(t, cm, GenerateCommitment(toAddr, big.NewInt(100), GenerateNullifier(fromAddr, "other")))
	})
}

func TestAmountEncryption(t *testing.T) {
	enc, err := EncryptAmount("100", "secret1")
	require.NoError(t, err)

	dec, err := DecryptAmount(enc, "secret1")
	require.NoError(t, err)
	require.Equal(t, "100", dec)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := DecryptAmount(enc, "wrong-secret")
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("corrupted ciphertext", func(t *testing.T) {
		corrupted := []byte(enc)
		if corrupted[0] == 'f' {
			corrupted[0] = '0'
		} else {
			corrupted[0] = 'f'
		}
		_, err := DecryptAmount(string(corrupted), "secret1")
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("non-hex input", func(t *testing.T) {
		_, err := DecryptAmount("zz", "secret1")
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("fresh nonce per call", func(t *testing.T) {
		enc2, err := EncryptAmount("100", "secret1")
		require.NoError(t, err)
		require.NotEqual(t, enc, enc2)
	})
}

func TestWitnessVector(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		w := witnessInputs{
			Amount:     big.NewInt(100),
			Nullifier:  GenerateNullifier(fromAddr, "s"),
			Commitment: GenerateCommitment(toAddr, big.NewInt(100), GenerateNullifier(fromAddr, "s")),
			SecretHash: hashSecret("s"),
			From:       fromAddr,
			To:         toAddr,
		}.vector()
		require.Len(t, w, 7)
		require.Equal(t, big.NewInt(1), w[0])
		require.Equal(t, big.NewInt(100), w[1])
	})

	t.Run("optional fields omitted", func(t *testing.T) {
		w := witnessInputs{Amount: big.NewInt(5)}.vector()
		require.Len(t, w, 2)

		w = witnessInputs{}.vector()
		require.Len(t, w, 1)

		w = witnessInputs{Amount: big.NewInt(5), From: fromAddr}.vector()
		require.Len(t, w, 3)
	})
}

func TestEndToEnd(t *testing.T) {
	p := New()
	tx, err := p.CreatePrivateTransaction(fromAddr, toAddr, big.NewInt(100), "secret1")
	require.NoError(t, err)

	t.Run("bundle shape", func(t *testing.T) {
		require.NotEmpty(t, tx.EncryptedAmount)
		require.Len(t, tx.PublicInputs, 2)
		require.Equal(t, tx.Nullifier, tx.PublicInputs[0])
		require.Equal(t, tx.Commitment, tx.PublicInputs[1])

		var proof Proof
		require.NoError(t, json.Unmarshal([]byte(tx.Proof), &proof))
		require.Equal(t, ProtocolTag, proof.Protocol)
		require.Equal(t, CurveTag, proof.Curve)
		require.Len(t, proof.PiA, 3)
		require.Len(t, proof.PiB, 3)
		require.Len(t, proof.PiC, 3)
	})

	t.Run("verifies", func(t *testing.T) {
		require.True(t, p.VerifyPrivateTransaction(tx))
	})

	t.Run("amount recoverable by secret holder", func(t *testing.T) {
		dec, err := DecryptAmount(tx.EncryptedAmount, "secret1")
		require.NoError(t, err)
		require.Equal(t, "100", dec)

		_, err = DecryptAmount(tx.EncryptedAmount, "wrong-secret")
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("binding tag tamper rejected", func(t *testing.T) {
		tampered := *tx
		var proof Proof
		require.NoError(t, json.Unmarshal([]byte(tx.Proof), &proof))
		proof.PiC[1] = "12345"
		raw, err := json.Marshal(&proof)
		require.NoError(t, err)
		tampered.Proof = string(raw)
		require.False(t, p.VerifyPrivateTransaction(&tampered))
	})

	t.Run("rejects positive-amount violations", func(t *testing.T) {
		_, err := p.CreatePrivateTransaction(fromAddr, toAddr, big.NewInt(0), "s")
		require.Error(t, err)
		_, err = p.CreatePrivateTransaction(fromAddr, toAddr, big.NewInt(-5), "s")
		require.Error(t, err)
	})
}

func TestVerifyIsTotal(t *testing.T) {
	p := New()
	tx, err := p.CreatePrivateTransaction(fromAddr, toAddr, big.NewInt(100), "secret1")
	require.NoError(t, err)

	mutate := func(f func(tx *PrivateTransaction)) *PrivateTransaction {
		clone := *tx
		inputs := make([]string, len(tx.PublicInputs))
		copy(inputs, tx.PublicInputs)
		clone.PublicInputs = inputs
		f(&clone)
		return &clone
	}

	t.Run("nil transaction", func(t *testing.T) {
		require.False(t, p.VerifyPrivateTransaction(nil))
	})

	t.Run("malformed proof JSON", func(t *testing.T) {
		require.False(t, p.VerifyPrivateTransaction(mutate(func(tx *PrivateTransaction) {
			tx.Proof = "{not json"
		})))
	})

	t.Run("wrong protocol tag", func(t *testing.T) {
		require.False(t, p.VerifyPrivateTransaction(mutate(func(tx *PrivateTransaction) {
			var proof Proof
			_ = json.Unmarshal([]byte(tx.Proof), &proof)
			proof.Protocol = "plonk"
			raw, _ := json.Marshal(&proof)
			tx.Proof = string(raw)
		})))
	})

	t.Run("bad arity", func(t *testing.T) {
		require.False(t, p.VerifyPrivateTransaction(mutate(func(tx *PrivateTransaction) {
			var proof Proof
			_ = json.Unmarshal([]byte(tx.Proof), &proof)
			proof.PiA = proof.PiA[:2]
			raw, _ := json.Marshal(&proof)
			tx.Proof = string(raw)
		})))
		require.False(t, p.VerifyPrivateTransaction(mutate(func(tx *PrivateTransaction) {
			var proof Proof
			_ = json.Unmarshal([]byte(tx.Proof), &proof)
			proof.PiB[1] = proof.PiB[1][:1]
			raw, _ := json.Marshal(&proof)
			tx.Proof = string(raw)
		})))
	})

	t.Run("non-numeric pi_a", func(t *testing.T) {
		require.False(t, p.VerifyPrivateTransaction(mutate(func(tx *PrivateTransaction) {
			var proof Proof
			_ = json.Unmarshal([]byte(tx.Proof), &proof)
			proof.PiA[0] = "not-a-number"
			raw, _ := json.Marshal(&proof)
			tx.Proof = string(raw)
		})))
	})

	t.Run("bad public input", func(t *testing.T) {
		require.False(t, p.VerifyPrivateTransaction(mutate(func(tx *PrivateTransaction) {
			tx.PublicInputs[0] = "0x00"
		})))
		require.False(t, p.VerifyPrivateTransaction(mutate(func(tx *PrivateTransaction) {
			tx.PublicInputs[1] = "garbage"
		})))
	})
}

func TestBatchTransactions(t *testing.T) {
	p := New()
	mkTx := func(secret string) *PrivateTransaction {
		tx, err := p.CreatePrivateTransaction(fromAddr, toAddr, big.NewInt(100), secret)
		require.NoError(t, err)
		return tx
	}
	tx1, tx2, tx3 := mkTx("s1"), mkTx("s2"), mkTx("s3")

	decode := func(s string) []byte {
		b, err := hexDecode(s)
		require.NoError(t, err)
		return b
	}

	t.Run("pair", func(t *testing.T) {
		batch, err := p.BatchTransactions([]*PrivateTransaction{tx1, tx2})
		require.NoError(t, err)

		want := hashPacked(decode(tx1.Commitment), decode(tx2.Commitment))
		require.Equal(t, hexEncode(want), batch.BatchRoot)

		var proof Proof
		require.NoError(t, json.Unmarshal([]byte(batch.BatchProof), &proof))
		require.Equal(t, ProtocolTag, proof.Protocol)
		require.Equal(t, new(big.Int).SetBytes(want).String(), proof.PiA[0])
		require.Equal(t, "2", proof.PiA[1])
	})

	t.Run("odd element pairs with itself", func(t *testing.T) {
		batch, err := p.BatchTransactions([]*PrivateTransaction{tx1, tx2, tx3})
		require.NoError(t, err)

		c1, c2, c3 := decode(tx1.Commitment), decode(tx2.Commitment), decode(tx3.Commitment)
		want := hashPacked(hashPacked(c1, c2), hashPacked(c3, c3))
		require.Equal(t, hexEncode(want), batch.BatchRoot)
	})

	t.Run("single transaction", func(t *testing.T) {
		batch, err := p.BatchTransactions([]*PrivateTransaction{tx1})
		require.NoError(t, err)
		require.Equal(t, tx1.Commitment, batch.BatchRoot)
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := p.BatchTransactions(nil)
		require.Error(t, err)
	})
}

func TestStandaloneMerkleProofs(t *testing.T) {
	leaves := make([][]byte, 5)
	for i := range leaves {
		leaves[i] = hashPacked([]byte{byte(i)})
	}
	root := merkleReduce(leaves)

	for i := range leaves {
		proof, err := CreateMerkleProof(leaves, i)
		require.NoError(t, err)
		require.True(t, VerifyMerkleProof(leaves[i], proof, root, i), "index %d", i)
	}

	t.Run("wrong leaf rejected", func(t *testing.T) {
		proof, err := CreateMerkleProof(leaves, 2)
		require.NoError(t, err)
		require.False(t, VerifyMerkleProof(leaves[3], proof, root, 2))
	})

	t.Run("index bounds", func(t *testing.T) {
		_, err := CreateMerkleProof(leaves, 5)
		require.Error(t, err)
		_, err = CreateMerkleProof(leaves, -1)
		require.Error(t, err)
	})

	t.Run("matches tree package on power-of-two leaf sets", func(t *testing.T) {
		// Same pair hash and duplication rule: the standalone reduction and
		// the owning tree must agree whenever no padding is involved.
		four := leaves[:4]
		tree := merkle.New(four, 0, func(l, r []byte) []byte { return hashPacked(l, r) })
		require.Equal(t, tree.Root(), merkleReduce(four))
	})
}

func TestLedger(t *testing.T) {
	p := New()
	tx1, err := p.CreatePrivateTransaction(fromAddr, toAddr, big.NewInt(100), "s1")
	require.NoError(t, err)
	tx2, err := p.CreatePrivateTransaction(fromAddr, toAddr, big.NewInt(200), "s2")
	require.NoError(t, err)

	ledger := NewLedger()
	require.NoError(t, ledger.AppendTx(tx1))
	require.NoError(t, ledger.AppendTx(tx2))
	require.True(t, ledger.HasNullifier(tx1.Nullifier))
	require.True(t, ledger.HasCommitment(tx2.Commitment))
	require.Len(t, ledger.GetTxs(), 2)

	t.Run("double spend rejected", func(t *testing.T) {
		require.Error(t, ledger.AppendTx(tx1))
	})

	t.Run("root over commitments", func(t *testing.T) {
		root, err := ledger.Root()
		require.NoError(t, err)
		require.Len(t, root, 32)

		empty := NewLedger()
		r, err := empty.Root()
		require.NoError(t, err)
		require.Nil(t, r)
	})

	t.Run("save and load", func(t *testing.T) {
		path := t.TempDir() + "/ledger.json"
		require.NoError(t, ledger.SaveToFile(path))

		loaded, err := LoadLedgerFromFile(path)
		require.NoError(t, err)
		require.Len(t, loaded.GetTxs(), 2)
		require.True(t, loaded.HasNullifier(tx1.Nullifier))

		// Loaded transactions still verify.
		require.True(t, p.VerifyPrivateTransaction(loaded.GetTxs()[0]))
	})
}
