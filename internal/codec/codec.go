package codec

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"docverify-service/internal/config"
	"docverify-service/internal/util"
)

var (
	ErrEncryptFailed = errors.New("submission encryption failed")
	ErrDecryptFailed = errors.New("submission decryption failed")
)

// keySalt is fixed so every instance derives the same static key from the
// configured passphrase. Submissions encrypted by one process must remain
// readable by any other process sharing the config.
var keySalt = []byte("docverify.submission.v1")

const (
	versionStatic = "v1"
	versionKMS    = "kms"
)

// envelope is the JSON structure behind every encrypted submission blob.
// Static-key blobs carry only the ciphertext; KMS-mode blobs also carry the
// encrypted data key so they can be opened after a restart.
type envelope struct {
	Version      string    `json:"version"`
	Ciphertext   string    `json:"ciphertext"`
	EncryptedDEK string    `json:"encrypted_dek,omitempty"`
	KeyID        string    `json:"key_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Codec encrypts and decrypts submission records. The default mode uses a
// static AES-256 key derived from the configured passphrase, which protects
// data at rest but not against anyone holding the same build and config. KMS
// envelope mode upgrades this to per-record data keys when enabled.
type Codec struct {
	staticKey []byte
	kmsClient *kms.Client
	config    *config.Config
	keyCache  sync.Map // encrypted DEK -> plaintext DEK
}

func NewCodec(cfg *config.Config, kmsClient *kms.Client) *Codec {
	key := pbkdf2.Key([]byte(cfg.Codec.Passphrase), keySalt, 4096, 32, sha256.New)
	return &Codec{
		staticKey: key,
		kmsClient: kmsClient,
		config:    cfg,
	}
}

// Encrypt serializes the record and seals it into an opaque base64 blob.
func (c *Codec) Encrypt(ctx context.Context, record map[string]any) (string, error) {
	plaintext, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}

	env := envelope{
		Version:   versionStatic,
		CreatedAt: time.Now().UTC(),
	}

	key := c.staticKey
	if c.config.KMS.Enabled && c.kmsClient != nil {
		dek, err := c.generateDataKey(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEncryptFailed, err)
		}
		key = dek.Plaintext
		env.Version = versionKMS
		env.EncryptedDEK = base64.StdEncoding.EncodeToString(dek.Ciphertext)
		env.KeyID = dek.KeyID
		c.keyCache.Store(env.EncryptedDEK, dek.Plaintext)
	}

	ciphertext, err := sealWithKey(plaintext, key)
	if err != nil {
		return "", err
	}
	env.Ciphertext = base64.StdEncoding.EncodeToString(ciphertext)

	blob, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt and returns the original record.
// Any tampering, truncation, or key mismatch yields ErrDecryptFailed.
func (c *Codec) Decrypt(ctx context.Context, blob string) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid blob encoding", ErrDecryptFailed)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope", ErrDecryptFailed)
	}

	key, err := c.resolveKey(ctx, &env)
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrDecryptFailed)
	}

	plaintext, err := openWithKey(ciphertext, key)
	if err != nil {
		return nil, err
	}

	var record map[string]any
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, fmt.Errorf("%w: decrypted payload is not a record", ErrDecryptFailed)
	}
	return record, nil
}

func (c *Codec) resolveKey(ctx context.Context, env *envelope) ([]byte, error) {
	switch env.Version {
	case versionStatic:
		return c.staticKey, nil
	case versionKMS:
		if cached, ok := c.keyCache.Load(env.EncryptedDEK); ok {
			return cached.([]byte), nil
		}
		if c.kmsClient == nil || !c.config.KMS.Enabled {
			return nil, fmt.Errorf("%w: kms blob but kms is disabled", ErrDecryptFailed)
		}
		ciphertextBlob, err := base64.StdEncoding.DecodeString(env.EncryptedDEK)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid DEK encoding", ErrDecryptFailed)
		}
		result, err := c.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: ciphertextBlob})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decrypt DEK: %v", ErrDecryptFailed, err)
		}
		c.keyCache.Store(env.EncryptedDEK, result.Plaintext)
		return result.Plaintext, nil
	default:
		return nil, fmt.Errorf("%w: unknown envelope version %q", ErrDecryptFailed, env.Version)
	}
}

type dataKey struct {
	Plaintext  []byte
	Ciphertext []byte
	KeyID      string
}

func (c *Codec) generateDataKey(ctx context.Context) (*dataKey, error) {
	input := &kms.GenerateDataKeyInput{
		KeyId:   aws.String(c.config.KMS.KeyID),
		KeySpec: types.DataKeySpecAes256,
	}
	result, err := c.kmsClient.GenerateDataKey(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}
	util.Debug("generated submission data key", zap.String("key_id", c.config.KMS.KeyID))
	return &dataKey{
		Plaintext:  result.Plaintext,
		Ciphertext: result.CiphertextBlob,
		KeyID:      c.config.KMS.KeyID,
	}, nil
}

func sealWithKey(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func openWithKey(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return plaintext, nil
}

// ClearCache drops all cached data keys.
func (c *Codec) ClearCache() {
	c.keyCache.Range(func(key, _ any) bool {
		c.keyCache.Delete(key)
		return true
	})
}
