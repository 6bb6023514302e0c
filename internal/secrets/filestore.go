// Package secrets supplies CA material and the governance file from an
// external provisioning directory. Absence is an expected state surfaced as
// (value, ok) pairs, never as an error.
package secrets

import (
	"crypto/md5"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/obs"
)

// Artifact names recognized inside the secrets directory.
const (
	IdentityCACertFile    = "identity_ca.pem"
	IdentityCAKeyFile     = "identity_ca_key.pem"
	PermissionsCACertFile = "permissions_ca.pem"
	PermissionsCAKeyFile  = "permissions_ca_key.pem"
	GovernanceFile        = "governance.xml.p7s"
)

var knownFiles = []string{
	IdentityCACertFile,
	IdentityCAKeyFile,
	PermissionsCACertFile,
	PermissionsCAKeyFile,
	GovernanceFile,
}

type cachedFile struct {
	content string
	etag    string
	present bool
	updated bool
}

// FileStore caches provisioned artifacts and tracks per-artifact versions.
// A directory watcher reloads entries when the provisioner rewrites them.
type FileStore struct {
	dir     string
	mu      sync.RWMutex
	files   map[string]*cachedFile
	watcher *fsnotify.Watcher
}

// NewFileStore loads the directory and starts watching it. An empty dir
// yields a store where every artifact is absent, matching an unprovisioned
// deployment.
func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{
		dir:   dir,
		files: make(map[string]*cachedFile, len(knownFiles)),
	}
	for _, name := range knownFiles {
		s.files[name] = &cachedFile{}
	}
	if dir == "" {
		return s, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("secrets dir: %w", err)
	}
	for _, name := range knownFiles {
		s.reload(name)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

// Close stops the directory watcher.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func (s *FileStore) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			s.mu.RLock()
			_, known := s.files[name]
			s.mu.RUnlock()
			if !known {
				continue
			}
			obs.Logger().WithField("artifact", name).Debug("secret artifact changed")
			s.reload(name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			obs.Logger().WithError(err).Warn("secrets watcher error")
		}
	}
}

func (s *FileStore) reload(name string) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.files[name]
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			obs.Logger().WithError(err).WithField("artifact", name).Warn("secret artifact unreadable")
		}
		if entry.present {
			entry.updated = true
		}
		*entry = cachedFile{updated: entry.updated}
		return
	}
	content := string(data)
	if entry.present && entry.content == content {
		return
	}
	sum := md5.Sum(data)
	entry.content = content
	entry.etag = strings.ToUpper(fmt.Sprintf("%x", sum))
	entry.updated = entry.present
	entry.present = true
}

func (s *FileStore) get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.files[name]
	if !ok || !entry.present {
		return "", false
	}
	return entry.content, true
}

// IdentityCACert returns the identity CA certificate PEM if provisioned.
func (s *FileStore) IdentityCACert() (string, bool) { return s.get(IdentityCACertFile) }

// IdentityCAKey returns the identity CA key PEM if provisioned.
func (s *FileStore) IdentityCAKey() (string, bool) { return s.get(IdentityCAKeyFile) }

// PermissionsCACert returns the permissions CA certificate PEM if provisioned.
func (s *FileStore) PermissionsCACert() (string, bool) { return s.get(PermissionsCACertFile) }

// PermissionsCAKey returns the permissions CA key PEM if provisioned.
func (s *FileStore) PermissionsCAKey() (string, bool) { return s.get(PermissionsCAKeyFile) }

// Governance returns the signed governance file if provisioned.
func (s *FileStore) Governance() (string, bool) { return s.get(GovernanceFile) }

// Etag returns the last-known version tag for an artifact, empty when the
// artifact is absent.
func (s *FileStore) Etag(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.files[name]
	if !ok || !entry.present {
		return ""
	}
	return entry.etag
}

// HasBeenUpdated reports whether the artifact changed since the last check,
// clearing the flag.
func (s *FileStore) HasBeenUpdated(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.files[name]
	if !ok {
		return false
	}
	updated := entry.updated
	entry.updated = false
	return updated
}
