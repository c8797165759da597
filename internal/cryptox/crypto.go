// Package cryptox derives identity-account secrets from an operator-held
// master key.
package cryptox

import (
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

const keyLen = 32

// DeriveKey stretches password with argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keyLen)
}

// DeriveAccountSecret returns the hex secret of the identity account called
// account. The same master key and account name always give the same
// secret, so it can be re-derived instead of stored.
func DeriveAccountSecret(masterKey []byte, account string) string {
	return hex.EncodeToString(DeriveKey(masterKey, []byte("stacksync/account/"+account)))
}
