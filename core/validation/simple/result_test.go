package simple

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/internal/testing/fake"
	"go.dedis.ch/duet/serde"
)

const (
	badFormat  = serde.Format("BAD")
	typeFormat = serde.Format("BAD_TYPE")
)

func init() {
	RegisterResultFormat(serde.FormatJSON, fake.Format{Msg: Result{}, Result: []byte("{}")})
	RegisterResultFormat(badFormat, fake.NewBadFormat())
	RegisterResultFormat(typeFormat, fake.Format{Msg: fake.Message{}})
	RegisterTransactionResultFormat(serde.FormatJSON, fake.Format{Msg: TransactionResult{}, Result: []byte("{}")})
	RegisterTransactionResultFormat(badFormat, fake.NewBadFormat())
}

func TestTransactionResult_GetTransaction(t *testing.T) {
	res := NewTransactionResult(fingerprintTx{}, true, "")
	require.Equal(t, fingerprintTx{}, res.GetTransaction())
}

func TestTransactionResult_GetStatus(t *testing.T) {
	res := NewTransactionResult(fingerprintTx{}, true, "")

	accepted, reason := res.GetStatus()
	require.True(t, accepted)
	require.Equal(t, "", reason)

	res = NewTransactionResult(fingerprintTx{}, false, "oops")

	accepted, reason = res.GetStatus()
	require.False(t, accepted)
	require.Equal(t, "oops", reason)
}

func TestTransactionResult_Serialize(t *testing.T) {
	res := NewTransactionResult(fingerprintTx{}, true, "")

	data, err := res.Serialize(fake.NewContext())
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), data)

	_, err = res.Serialize(newContext(badFormat))
	require.EqualError(t, err, fake.Err("encoding failed"))
}

func TestTransactionResultFactory_Deserialize(t *testing.T) {
	fac := NewTransactionResultFactory(nil)

	msg, err := fac.Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.Equal(t, TransactionResult{}, msg)

	_, err = fac.Deserialize(newContext(badFormat), nil)
	require.EqualError(t, err, fake.Err("decoding failed"))
}

func TestResult_GetTransactionResults(t *testing.T) {
	res := Result{
		txs: []TransactionResult{{}, {}},
	}

	require.Len(t, res.GetTransactionResults(), 2)
}

func TestResult_Fingerprint(t *testing.T) {
	res := Result{
		txs: []TransactionResult{
			{tx: fingerprintTx{}, reason: "oops"},
			{tx: fingerprintTx{}, accepted: true},
		},
	}

	buffer := new(bytes.Buffer)
	err := res.Fingerprint(buffer)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 4, 0, 0, 0, 'o', 'o', 'p', 's', 1}, buffer.Bytes())

	// Two blocks refusing the same transaction for another reason differ.
	other := new(bytes.Buffer)
	res.txs[0].reason = "nope"
	require.NoError(t, res.Fingerprint(other))
	require.NotEqual(t, buffer.Bytes(), other.Bytes())

	err = res.Fingerprint(fake.NewBadHash())
	require.EqualError(t, err, fake.Err("couldn't write refusal"))

	err = res.Fingerprint(fake.NewBadHashWithDelay(1))
	require.EqualError(t, err, fake.Err("couldn't write accepted"))

	res.txs[0].tx = fingerprintTx{err: fake.GetError()}
	err = res.Fingerprint(buffer)
	require.EqualError(t, err, fake.Err("couldn't fingerprint tx"))
}

func TestRefused(t *testing.T) {
	require.Nil(t, Refused(nil))

	res := NewResult([]TransactionResult{
		NewTransactionResult(fingerprintTx{}, true, ""),
		NewTransactionResult(fingerprintTx{}, false, "insufficient funds"),
		NewTransactionResult(fingerprintTx{}, false, "nonce '5' != '0'"),
	})

	refused := Refused(res)
	require.Len(t, refused, 2)

	_, reason := refused[0].GetStatus()
	require.Equal(t, "insufficient funds", reason)

	require.Empty(t, Refused(NewResult(nil)))
}

func TestResult_Serialize(t *testing.T) {
	res := NewResult(nil)

	data, err := res.Serialize(fake.NewContext())
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), data)

	_, err = res.Serialize(newContext(badFormat))
	require.EqualError(t, err, fake.Err("encoding failed"))
}

func TestResultFactory_Deserialize(t *testing.T) {
	fac := NewResultFactory(nil)

	msg, err := fac.Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.Equal(t, Result{}, msg)

	_, err = fac.Deserialize(newContext(badFormat), nil)
	require.EqualError(t, err, fake.Err("decoding failed"))

	_, err = fac.Deserialize(newContext(typeFormat), nil)
	require.EqualError(t, err, "invalid result type 'fake.Message'")
}

// -----------------------------------------------------------------------------
// Utility functions

func newContext(format serde.Format) serde.Context {
	return serde.NewContext(fake.ContextEngine{Format: format})
}

type fingerprintTx struct {
	txn.Transaction

	err error
}

func (tx fingerprintTx) Fingerprint(io.Writer) error {
	return tx.err
}
