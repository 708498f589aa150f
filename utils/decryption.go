package utils

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/datazip-inc/airlake/constants"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"
)

const kmsKeyPrefix = "arn:aws:kms:"

// kmsDecrypter is the subset of the KMS client used for config decryption
type kmsDecrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// overridden in tests
var newKMSClient = func(ctx context.Context) (kmsDecrypter, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %s", err)
	}
	return kms.NewFromConfig(cfg), nil
}

// EncryptionEnabled reports whether an encryption key was supplied
func EncryptionEnabled() bool {
	return strings.TrimSpace(viper.GetString(constants.EncryptionKey)) != ""
}

// Decrypt opens cipherData with the configured ENCRYPTION_KEY. A KMS key ARN
// delegates to AWS KMS; any other key is hashed into an AES-256-GCM key whose
// nonce prefixes the ciphertext. Without a key the data is returned as is.
func Decrypt(ctx context.Context, cipherData []byte) ([]byte, error) {
	key := strings.TrimSpace(viper.GetString(constants.EncryptionKey))
	if key == "" {
		return cipherData, nil
	}

	if strings.HasPrefix(key, kmsKeyPrefix) {
		client, err := newKMSClient(ctx)
		if err != nil {
			return nil, err
		}
		out, err := client.Decrypt(ctx, &kms.DecryptInput{
			CiphertextBlob: cipherData,
			KeyId:          &key,
		})
		if err != nil {
			return nil, fmt.Errorf("kms decryption failed: %s", err)
		}
		return out.Plaintext, nil
	}

	aead, err := localCipher(key)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(cipherData) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := cipherData[:nonceSize], cipherData[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %s", err)
	}

	return plaintext, nil
}

// DecryptConfig decodes and decrypts a config file body. The body is either a
// JSON string or a bare base64 (URL alphabet) payload.
func DecryptConfig(ctx context.Context, encryptedConfig []byte) ([]byte, error) {
	var unquoted string
	if err := json.Unmarshal(encryptedConfig, &unquoted); err != nil {
		unquoted = strings.TrimSpace(string(encryptedConfig))
	}

	encryptedData, err := base64.URLEncoding.DecodeString(unquoted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %s", err)
	}

	decrypted, err := Decrypt(ctx, encryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %s", err)
	}

	return decrypted, nil
}

func localCipher(key string) (cipher.AEAD, error) {
	hash := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(hash[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
