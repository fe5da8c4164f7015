// Package encryption implements the optional Encryption plugin (§4.8): it
// AEAD-encrypts the declared encrypted fields into a single opaque blob
// under __encrypted on create, and reverses it on recover.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"

	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/plugin"
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

const (
	field        = "__encrypted"
	saltSize     = 16
	nonceSize    = 12
	keySize      = 32
	pbkdf2Rounds = 5000
	minBlobSize  = saltSize + nonceSize
)

// Plugin encrypts and decrypts the schema's declared encrypted fields under
// a single password. Constructing one with an empty password is invalid —
// the Storage facade only wires this plugin in when a password was given.
type Plugin struct {
	password string
}

// New constructs the Encryption plugin for the given password.
func New(password string) *Plugin {
	return &Plugin{password: password}
}

// Name implements plugin.Plugin.
func (*Plugin) Name() string { return "Encryption" }

// CreateHook collects the declared encrypted fields present in the
// document, removes them, and replaces them with a single encrypted blob.
func (p *Plugin) CreateHook(s *schema.Schema, _ migrate.VersionMap, doc any) (any, error) {
	return plugin.Each(doc, func(d *types.Document) (*types.Document, error) {
		return p.encrypt(s, d)
	})
}

// RecoverHook reverses CreateHook, merging the decrypted fields back in.
func (p *Plugin) RecoverHook(s *schema.Schema, _ migrate.VersionMap, doc any) (any, error) {
	return plugin.Each(doc, func(d *types.Document) (*types.Document, error) {
		return p.decrypt(s, d)
	})
}

func (p *Plugin) encrypt(s *schema.Schema, doc *types.Document) (*types.Document, error) {
	if len(s.Encrypted) == 0 {
		return doc, nil
	}

	sub, err := types.NewDocument()
	if err != nil {
		return nil, err
	}

	for _, fieldName := range s.Encrypted {
		v := doc.GetOrNil(fieldName)
		if v == nil {
			continue
		}

		if err := sub.Set(fieldName, v); err != nil {
			return nil, err
		}

		doc.Remove(fieldName)
	}

	if sub.Len() == 0 {
		return doc, nil
	}

	plaintext, err := types.MarshalJSON(sub)
	if err != nil {
		return nil, ridberr.Crypto(err.Error())
	}

	blob, err := p.sealed(plaintext)
	if err != nil {
		return nil, err
	}

	if err := doc.Set(field, blob); err != nil {
		return nil, ridberr.Crypto(err.Error())
	}

	return doc, nil
}

func (p *Plugin) sealed(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", ridberr.Crypto("failed to generate salt")
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", ridberr.Crypto("failed to generate nonce")
	}

	gcm, err := p.gcm(salt)
	if err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	combined := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	combined = append(combined, salt...)
	combined = append(combined, nonce...)
	combined = append(combined, ciphertext...)

	return base64.StdEncoding.EncodeToString(combined), nil
}

func (p *Plugin) decrypt(s *schema.Schema, doc *types.Document) (*types.Document, error) {
	blob, ok := doc.GetOrNil(field).(string)
	if !ok {
		return doc, nil
	}

	if len(s.Encrypted) == 0 {
		return doc, nil
	}

	if blob == "" {
		return nil, ridberr.Crypto("Encrypted data is empty")
	}

	decoded, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ridberr.Crypto("Invalid base64 data")
	}

	if len(decoded) < minBlobSize {
		return nil, ridberr.Crypto("Invalid encrypted data length")
	}

	salt, rest := decoded[:saltSize], decoded[saltSize:]
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	gcm, err := p.gcm(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ridberr.Crypto("Decryption failed")
	}

	sub, err := types.ParseJSON(plaintext)
	if err != nil {
		return nil, ridberr.Crypto("Failed to parse decrypted data")
	}

	doc.Remove(field)

	for _, fieldName := range s.Encrypted {
		v := sub.GetOrNil(fieldName)
		if v == nil {
			continue
		}

		if err := doc.Set(fieldName, v); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func (p *Plugin) gcm(salt []byte) (cipher.AEAD, error) {
	if p.password == "" {
		return nil, ridberr.Crypto("Password cannot be empty")
	}

	key := pbkdf2.Key([]byte(p.password), salt, pbkdf2Rounds, keySize, sha3.New256)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ridberr.Crypto("failed to create cipher")
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ridberr.Crypto("failed to create cipher")
	}

	return gcm, nil
}
