package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid"
	"sigs.k8s.io/yaml"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// ULID returns a lexicographically sortable unique id
func ULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// IsYAMLFile reports whether path carries a YAML extension
func IsYAMLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// UnmarshalFile reads a JSON or YAML file into dest. With decrypt set, the file
// body is first decrypted using the configured encryption key.
func UnmarshalFile(ctx context.Context, path string, dest any, decrypt bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file[%s]: %s", path, err)
	}

	if decrypt && EncryptionEnabled() {
		data, err = DecryptConfig(ctx, data)
		if err != nil {
			return fmt.Errorf("failed to decrypt file[%s]: %s", path, err)
		}
	}

	if IsYAMLFile(path) {
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return fmt.Errorf("failed to convert yaml file[%s]: %s", path, err)
		}
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal file[%s]: %s", path, err)
	}

	return nil
}

// Unmarshal converts from into to through JSON; used to turn loosely typed
// maps into connector structs
func Unmarshal(from, to any) error {
	raw, err := json.Marshal(from)
	if err != nil {
		return fmt.Errorf("error marshaling object: %s", err)
	}

	if err := json.Unmarshal(raw, to); err != nil {
		return fmt.Errorf("error unmarshaling into target: %s", err)
	}

	return nil
}
