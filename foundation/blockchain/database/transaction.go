package database

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
)

// =============================================================================

// Tx is the transactional information between two parties.
type Tx struct {
	From   string `json:"from"`   // Public key of the account sending value.
	To     string `json:"to"`     // Public key of the account receiving value.
	Amount int64  `json:"amount"` // Monetary value moved by this transaction.
}

// NewTx constructs a new unsigned transaction.
func NewTx(from string, to string, amount int64) (Tx, error) {
	if amount <= 0 {
		return Tx{}, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidAmount, amount)
	}

	fromKey, err := signature.ParsePublicKey(from)
	if err != nil {
		return Tx{}, fmt.Errorf("from account is not properly formatted: %w", err)
	}

	toKey, err := signature.ParsePublicKey(to)
	if err != nil {
		return Tx{}, fmt.Errorf("to account is not properly formatted: %w", err)
	}

	// Accounts are stored in their canonical lower case form so key
	// comparisons never depend on how the caller spelled the hex.
	tx := Tx{
		From:   signature.PublicKeyHex(*fromKey),
		To:     signature.PublicKeyHex(*toKey),
		Amount: amount,
	}

	return tx, nil
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {

	// The private key must belong to the account sending the value.
	if signature.PublicKeyHex(privateKey.PublicKey) != tx.From {
		return SignedTx{}, fmt.Errorf("%w: private key does not match from account %s", ErrSignatureInvalid, tx.From)
	}

	// Sign the transaction with the private key to produce a signature.
	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, fmt.Errorf("%w: %s", ErrSignatureInvalid, err)
	}

	signedTx := SignedTx{
		Tx:        tx,
		Signature: sig,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the blockchain.
type SignedTx struct {
	Tx
	Signature string `json:"signature"`
}

// Validate verifies the transaction has a positive amount and a signature
// produced by the from account over the exact transaction data.
func (tx SignedTx) Validate() error {
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidAmount, tx.Amount)
	}

	if tx.Signature == "" {
		return fmt.Errorf("%w: transaction is not signed", ErrSignatureInvalid)
	}

	if !signature.Verify(tx.Tx, tx.From, tx.Signature) {
		return fmt.Errorf("%w: signature does not match from account %s", ErrSignatureInvalid, tx.From)
	}

	return nil
}

// IsValid returns true only if a signature is present and verifies.
func (tx SignedTx) IsValid() bool {
	return tx.Validate() == nil
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%s:%d", short(tx.From), short(tx.To), tx.Amount)
}

// short trims a hex value for log output.
func short(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:10]
}
