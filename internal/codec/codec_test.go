package codec

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/suite"

	"docverify-service/internal/config"
)

type CodecSuite struct {
	suite.Suite
	codec *Codec
	ctx   context.Context
}

func (s *CodecSuite) SetupTest() {
	s.codec = NewCodec(testConfig("unit-test-passphrase"), nil)
	s.ctx = context.Background()
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func testConfig(passphrase string) *config.Config {
	return &config.Config{
		Codec: config.CodecConfig{Passphrase: passphrase},
	}
}

func sampleRecord() map[string]any {
	return map[string]any{
		"username": "ravi",
		"name":     "Ravi Kumar",
		"dob":      "1990-01-15",
		"aadhaar":  "1234 5678 9012",
	}
}

func (s *CodecSuite) TestRoundTrip() {
	s.Run("encrypts and decrypts a record", func() {
		blob, err := s.codec.Encrypt(s.ctx, sampleRecord())
		s.Require().NoError(err)
		s.NotEmpty(blob)

		decrypted, err := s.codec.Decrypt(s.ctx, blob)
		s.Require().NoError(err)
		s.Equal("Ravi Kumar", decrypted["name"])
		s.Equal("1234 5678 9012", decrypted["aadhaar"])
	})

	s.Run("ciphertext differs between calls for the same record", func() {
		blob1, err := s.codec.Encrypt(s.ctx, sampleRecord())
		s.Require().NoError(err)
		blob2, err := s.codec.Encrypt(s.ctx, sampleRecord())
		s.Require().NoError(err)
		s.NotEqual(blob1, blob2)
	})

	s.Run("blob is opaque base64", func() {
		blob, err := s.codec.Encrypt(s.ctx, sampleRecord())
		s.Require().NoError(err)

		raw, err := base64.StdEncoding.DecodeString(blob)
		s.Require().NoError(err)
		s.NotContains(string(raw), "Ravi Kumar")
	})
}

func (s *CodecSuite) TestDecryptFailures() {
	s.Run("rejects garbage input", func() {
		_, err := s.codec.Decrypt(s.ctx, "not-a-blob!!!")
		s.Require().ErrorIs(err, ErrDecryptFailed)
	})

	s.Run("rejects tampered ciphertext", func() {
		blob, err := s.codec.Encrypt(s.ctx, sampleRecord())
		s.Require().NoError(err)

		raw, err := base64.StdEncoding.DecodeString(blob)
		s.Require().NoError(err)
		// Flip a byte inside the envelope's ciphertext field.
		raw[len(raw)/2] ^= 0xFF
		tampered := base64.StdEncoding.EncodeToString(raw)

		_, err = s.codec.Decrypt(s.ctx, tampered)
		s.Require().ErrorIs(err, ErrDecryptFailed)
	})

	s.Run("rejects blob from a different key", func() {
		other := NewCodec(testConfig("a-different-passphrase"), nil)
		blob, err := other.Encrypt(s.ctx, sampleRecord())
		s.Require().NoError(err)

		_, err = s.codec.Decrypt(s.ctx, blob)
		s.Require().ErrorIs(err, ErrDecryptFailed)
	})

	s.Run("rejects kms blob when kms is disabled", func() {
		blob := base64.StdEncoding.EncodeToString([]byte(
			`{"version":"kms","ciphertext":"AAAA","encrypted_dek":"AAAA"}`))
		_, err := s.codec.Decrypt(s.ctx, blob)
		s.Require().ErrorIs(err, ErrDecryptFailed)
	})
}

func (s *CodecSuite) TestSharedKeyAcrossInstances() {
	// Two instances with the same passphrase must derive the same key, or a
	// restart would orphan every stored submission.
	blob, err := s.codec.Encrypt(s.ctx, sampleRecord())
	s.Require().NoError(err)

	fresh := NewCodec(testConfig("unit-test-passphrase"), nil)
	decrypted, err := fresh.Decrypt(s.ctx, blob)
	s.Require().NoError(err)
	s.Equal("ravi", decrypted["username"])
}
