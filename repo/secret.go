package repo

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v75/github"
	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/box"
)

// Sealer encrypts a message for the holder of publicKey without needing the
// matching private key.
type Sealer interface {
	Seal(publicKey, message []byte) ([]byte, error)
}

// NaClSealer seals with a libsodium-compatible anonymous sealed box, the
// scheme GitHub expects for Actions secrets.
type NaClSealer struct{}

// Seal implements Sealer.
func (NaClSealer) Seal(publicKey, message []byte) ([]byte, error) {
	if len(publicKey) != 32 {
		return nil, fmt.Errorf("public key is %d bytes, want 32", len(publicKey))
	}
	var key [32]byte
	copy(key[:], publicKey)
	return box.SealAnonymous(nil, message, &key, rand.Reader)
}

// GrantActionSecret stores the bound token as the repository's PERSONAL_TOKEN
// Actions secret so the deploy workflow can push. It fails closed with
// ErrEncryptionUnavailable when the client has no Sealer.
func (c *Client) GrantActionSecret(ctx context.Context) error {
	const op = "grant action secret"
	if err := c.requireRepo(op); err != nil {
		return err
	}
	if c.sealer == nil {
		return fail(op, KindEncryptionUnavailable, errors.New("no sealer configured"))
	}

	key, _, err := c.gh.Actions.GetRepoPublicKey(ctx, c.creds.Owner, c.creds.Repo)
	if err != nil {
		return classify(op, err)
	}
	raw, err := base64.StdEncoding.DecodeString(key.GetKey())
	if err != nil {
		return fail(op, KindMalformedResponse, fmt.Errorf("decode public key: %w", err))
	}
	sealed, err := c.sealer.Seal(raw, []byte(c.creds.Token))
	if err != nil {
		return fail(op, KindEncryptionUnavailable, err)
	}

	resp, err := c.gh.Actions.CreateOrUpdateRepoSecret(ctx, c.creds.Owner, c.creds.Repo, &gogithub.EncryptedSecret{
		Name:           SecretName,
		KeyID:          key.GetKeyID(),
		EncryptedValue: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return classify(op, err)
	}
	// 201 creates the secret, 204 replaces an existing one.
	if err := expectStatus(op, resp, http.StatusCreated, http.StatusNoContent); err != nil {
		return err
	}
	c.logger.Debug("granted action secret", zap.String("secret", SecretName))
	return nil
}
