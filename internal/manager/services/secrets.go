package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/cryptox"
)

// SecretIssuer supplies the password of a new identity account.
type SecretIssuer interface {
	Issue(ctx context.Context, account string) (string, error)
}

// RandomSecretIssuer issues a fresh 32-byte random secret, hex encoded.
type RandomSecretIssuer struct{}

func (RandomSecretIssuer) Issue(context.Context, string) (string, error) {
	return common.MakeRandHexString(32)
}

// DerivedSecretIssuer derives the secret from a master key and the account
// name, so it can be recomputed later without being stored.
type DerivedSecretIssuer struct {
	MasterKey []byte
}

func (d DerivedSecretIssuer) Issue(_ context.Context, account string) (string, error) {
	if len(d.MasterKey) == 0 {
		return "", fmt.Errorf("%w: empty master key", common.ErrorInvalidArgument)
	}
	return cryptox.DeriveAccountSecret(d.MasterKey, account), nil
}
