package token

import (
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const derivedKeyLength = 32 // 256 bits

// DeriveKeys expands the single configured master secret into independent
// access and refresh signing keys via HKDF-SHA256. Separate keys mean a
// refresh token can never be replayed as an access token or vice versa, even
// though both are HS256 JWTs.
func DeriveKeys(masterSecret string) (accessKey, refreshKey []byte, err error) {
	if masterSecret == "" {
		return nil, nil, errors.New("master secret is empty")
	}

	accessKey, err = deriveKey(masterSecret, "access-token-signing")
	if err != nil {
		return nil, nil, err
	}
	refreshKey, err = deriveKey(masterSecret, "refresh-token-signing")
	if err != nil {
		return nil, nil, err
	}
	return accessKey, refreshKey, nil
}

func deriveKey(masterSecret, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(info))
	key := make([]byte, derivedKeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrapf(err, "deriving %s key", info)
	}
	return key, nil
}
