package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"igrelay/pkg/instagram"
)

// sealedFile is the on-disk layout of an encrypted session
type sealedFile struct {
	Version   int       `json:"version"`
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Modified  time.Time `json:"modified"`
}

// FileStore keeps one session in a JSON file. With a passphrase the file is
// sealed with AES-GCM under a PBKDF2-SHA256 key.
type FileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

// NewFileStore creates a file store, creating the parent directory
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &FileStore{path: path, passphrase: passphrase}, nil
}

// Path returns the session file location
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the session. A session saved for a different username is
// treated as absent.
func (f *FileStore) Load(username string) (*instagram.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	plaintext, err := f.unseal(content)
	if err != nil {
		return nil, err
	}

	var session instagram.Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", f.path, err)
	}

	if username != "" && session.Username != username {
		return nil, ErrNotFound
	}

	return &session, nil
}

// Save writes the session atomically with mode 0600
func (f *FileStore) Save(session *instagram.Session) error {
	if session == nil || session.Username == "" {
		return ErrInvalidSession
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	content, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if f.passphrase != "" {
		salt, encrypted, err := seal(content, f.passphrase)
		if err != nil {
			return fmt.Errorf("failed to encrypt session: %w", err)
		}
		content, err = json.MarshalIndent(sealedFile{
			Version:   1,
			Salt:      base64.StdEncoding.EncodeToString(salt),
			Encrypted: base64.StdEncoding.EncodeToString(encrypted),
			Modified:  time.Now().UTC(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sealed session: %w", err)
		}
	}

	return writeFileAtomic(f.path, content, 0600)
}

// Delete removes the session file
func (f *FileStore) Delete(username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

func (f *FileStore) unseal(content []byte) ([]byte, error) {
	var sealed sealedFile
	if err := json.Unmarshal(content, &sealed); err != nil || sealed.Encrypted == "" {
		if f.passphrase != "" {
			return nil, fmt.Errorf("session file %s is not encrypted but a passphrase is set", f.path)
		}
		return content, nil
	}

	if f.passphrase == "" {
		return nil, fmt.Errorf("session file %s is encrypted; set IGRELAY_SESSION_PASSPHRASE", f.path)
	}

	salt, err := base64.StdEncoding.DecodeString(sealed.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	encrypted, err := base64.StdEncoding.DecodeString(sealed.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted session: %w", err)
	}

	return open(encrypted, salt, f.passphrase)
}

// writeFileAtomic writes to a temp file in the same directory, syncs it and
// renames it over path
func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary session file: %w", err)
	}
	tempPath := file.Name()

	if _, err := file.Write(content); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := file.Chmod(perm); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to set session file mode: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync session file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	return nil
}
