package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

const (
	identitiesDir = "identities"
	sightingsDir  = "sightings"
)

// FileStorage implements Store with one file per record.
type FileStorage struct {
	dataDir           string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
	mu                sync.Mutex
	now               func() time.Time
}

var _ Store = (*FileStorage)(nil)

// NewFileStorage creates a new FileStorage instance.
func NewFileStorage(dataDir string, encryptionEnabled bool) (*FileStorage, error) {
	fs := &FileStorage{
		dataDir:           dataDir,
		encryptionEnabled: encryptionEnabled,
		now:               time.Now,
	}

	// Derive encryption key from machine-specific information
	if encryptionEnabled {
		key, err := deriveKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		fs.encryptionKey = key
	}

	for _, dir := range []string{identitiesDir, sightingsDir} {
		if err := os.MkdirAll(filepath.Join(dataDir, dir), 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return fs, nil
}

// deriveKey derives an encryption key from machine-specific information.
// This ties the encrypted records to this specific machine.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("crimeapp-records-v1")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])

	return key, nil
}

func (fs *FileStorage) ext() string {
	if fs.encryptionEnabled {
		return ".enc"
	}
	return ".json"
}

func (fs *FileStorage) identityPath(id string) string {
	return filepath.Join(fs.dataDir, identitiesDir, id+fs.ext())
}

// writeRecord marshals v and swaps it into place with a rename, so readers
// see either the old record or the new one.
func (fs *FileStorage) writeRecord(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if fs.encryptionEnabled {
		data, err = fs.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt record: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (fs *FileStorage) readRecord(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if fs.encryptionEnabled {
		data, err = fs.decrypt(data)
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", filepath.Base(path), err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// recordFiles lists record files in dir sorted by name.
func (fs *FileStorage) recordFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.dataDir, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fs.ext()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ListAll returns every identity ordered by creation time, then id.
func (fs *FileStorage) ListAll(ctx context.Context) ([]Identity, error) {
	names, err := fs.recordFiles(identitiesDir)
	if err != nil {
		return nil, err
	}

	identities := make([]Identity, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var identity Identity
		if err := fs.readRecord(filepath.Join(fs.dataDir, identitiesDir, name), &identity); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		identities = append(identities, identity)
	}

	sort.SliceStable(identities, func(i, j int) bool {
		if !identities[i].CreatedAt.Equal(identities[j].CreatedAt) {
			return identities[i].CreatedAt.Before(identities[j].CreatedAt)
		}
		return identities[i].ID < identities[j].ID
	})
	return identities, nil
}

// Get loads one identity.
func (fs *FileStorage) Get(ctx context.Context, id string) (*Identity, error) {
	if err := ValidateID(id); err != nil {
		return nil, ErrIdentityNotFound
	}

	var identity Identity
	if err := fs.readRecord(fs.identityPath(id), &identity); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}
	return &identity, nil
}

// GetStatus returns the current status of an identity.
func (fs *FileStorage) GetStatus(ctx context.Context, id string) (Status, error) {
	identity, err := fs.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return identity.Status, nil
}

// SetStatus overwrites the status of an existing identity.
func (fs *FileStorage) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidIdentity, status)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	identity, err := fs.Get(ctx, id)
	if err != nil {
		return err
	}
	identity.Status = status
	if err := fs.writeRecord(fs.identityPath(id), identity); err != nil {
		return err
	}

	logging.Debugf("Set status of %s to %s", id, status)
	return nil
}

// Create stores a new identity.
func (fs *FileStorage) Create(ctx context.Context, identity *Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.identityPath(identity.ID)
	if _, err := os.Stat(path); err == nil {
		return ErrIdentityExists
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = fs.now().UTC()
	}
	if err := fs.writeRecord(path, identity); err != nil {
		return err
	}

	logging.Debugf("Created identity: %s", identity.ID)
	return nil
}

// Append adds a sighting to the log.
func (fs *FileStorage) Append(ctx context.Context, sighting *Sighting) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if sighting.ID == "" {
		sighting.ID = uuid.NewString()
	}
	if sighting.CreatedAt.IsZero() {
		sighting.CreatedAt = fs.now().UTC()
	}

	name := fmt.Sprintf("%020d-%s%s", sighting.CreatedAt.UnixNano(), sighting.ID, fs.ext())
	return fs.writeRecord(filepath.Join(fs.dataDir, sightingsDir, name), sighting)
}

// ListWhere returns sightings with the given snapshot status in creation order.
func (fs *FileStorage) ListWhere(ctx context.Context, status Status) ([]Sighting, error) {
	names, err := fs.recordFiles(sightingsDir)
	if err != nil {
		return nil, err
	}

	sightings := []Sighting{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var s Sighting
		if err := fs.readRecord(filepath.Join(fs.dataDir, sightingsDir, name), &s); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if status == "" || s.Status == status {
			sightings = append(sightings, s)
		}
	}
	return sightings, nil
}

// GetSighting returns one sighting by id.
func (fs *FileStorage) GetSighting(ctx context.Context, id string) (*Sighting, error) {
	names, err := fs.recordFiles(sightingsDir)
	if err != nil {
		return nil, err
	}
	suffix := "-" + id + fs.ext()
	for _, name := range names {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		var s Sighting
		if err := fs.readRecord(filepath.Join(fs.dataDir, sightingsDir, name), &s); err != nil {
			if os.IsNotExist(err) {
				break
			}
			return nil, err
		}
		return &s, nil
	}
	return nil, ErrSightingNotFound
}

func (fs *FileStorage) clearDir(dir string) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	names, err := fs.recordFiles(dir)
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if err := os.Remove(filepath.Join(fs.dataDir, dir, name)); err != nil && !os.IsNotExist(err) {
			return i, fmt.Errorf("failed to delete record: %w", err)
		}
	}
	return len(names), nil
}

// DeleteAllIdentities removes every identity.
func (fs *FileStorage) DeleteAllIdentities(ctx context.Context) (int, error) {
	n, err := fs.clearDir(identitiesDir)
	if err == nil {
		logging.Infof("Deleted %d identities", n)
	}
	return n, err
}

// DeleteAllSightings removes every sighting.
func (fs *FileStorage) DeleteAllSightings(ctx context.Context) (int, error) {
	n, err := fs.clearDir(sightingsDir)
	if err == nil {
		logging.Infof("Deleted %d sightings", n)
	}
	return n, err
}

// Close is a no-op for file storage.
func (fs *FileStorage) Close() error {
	return nil
}

// encrypt encrypts data using NaCl secretbox.
func (fs *FileStorage) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	encrypted := secretbox.Seal(nonce[:], plaintext, &nonce, &fs.encryptionKey)
	return encrypted, nil
}

// decrypt decrypts data using NaCl secretbox.
func (fs *FileStorage) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &fs.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}

	return plaintext, nil
}
