package packer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/solana"
)

// SubmitError is returned when a transaction is rejected by the RPC node or
// fails on chain.
type SubmitError struct {
	Signature solana.Signature
	Logs      []string
	Err       error
}

func newSubmitError(sig solana.Signature, err error) *SubmitError {
	submitErr := &SubmitError{Signature: sig, Err: err}

	var txErr *solana.TransactionError
	if errors.As(err, &txErr) {
		submitErr.Logs = txErr.Logs()
	}
	return submitErr
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature.String(), e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// LogString joins the program logs for display.
func (e *SubmitError) LogString() string {
	return strings.Join(e.Logs, "\n")
}
