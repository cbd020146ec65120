package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/temirov/checkouts/internal/repos/filesystem"
)

const (
	registryPathRequiredMessageConstant = "registry path must be provided"
	fileSystemMissingMessageConstant    = "file system not configured"
	registryReadErrorTemplateConstant   = "failed to read registry %s: %w"
	registryParseErrorTemplateConstant  = "failed to parse registry %s: %w"
	fileWriteErrorTemplateConstant      = "failed to write %s %s: %w"
	fileCommitErrorTemplateConstant     = "failed to replace %s %s: %w"
	registrySubjectConstant             = "registry"
	remotesSubjectConstant              = "remotes file"
	temporaryFileSuffixConstant         = ".tmp"
	registryFilePermissionsConstant     = fs.FileMode(0o644)
)

// ErrPathRequired indicates the store was asked to operate on an empty path.
var ErrPathRequired = errors.New(registryPathRequiredMessageConstant)

// ErrFileSystemNotConfigured indicates the store was built without file access.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// FileSystem exposes the file operations required by the store.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, permissions fs.FileMode) error
	Rename(oldPath string, newPath string) error
	Remove(path string) error
}

// Store loads and persists whole registry files.
type Store struct {
	fileSystem FileSystem
}

// NewStore constructs a Store; a nil file system falls back to the OS.
func NewStore(fileSystem FileSystem) *Store {
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	return &Store{fileSystem: fileSystem}
}

// Load reads and validates the registry at path.
func (store *Store) Load(path string) (Registry, error) {
	trimmedPath, pathError := store.validate(path)
	if pathError != nil {
		return Registry{}, pathError
	}

	contents, readError := store.fileSystem.ReadFile(trimmedPath)
	if readError != nil {
		return Registry{}, fmt.Errorf(registryReadErrorTemplateConstant, trimmedPath, readError)
	}

	loadedRegistry, decodeError := Decode(bytes.NewReader(contents))
	if decodeError != nil {
		return Registry{}, fmt.Errorf(registryParseErrorTemplateConstant, trimmedPath, decodeError)
	}
	return loadedRegistry, nil
}

// Save rewrites the registry at path. The content is written to a sibling
// temporary file first and renamed over the target, so a failure leaves the
// previous file intact.
func (store *Store) Save(path string, registry Registry) error {
	trimmedPath, pathError := store.validate(path)
	if pathError != nil {
		return pathError
	}

	var buffer bytes.Buffer
	if encodeError := Encode(&buffer, registry); encodeError != nil {
		return fmt.Errorf(fileWriteErrorTemplateConstant, registrySubjectConstant, trimmedPath, encodeError)
	}

	return store.replace(registrySubjectConstant, trimmedPath, buffer.Bytes())
}

// SaveRemotes writes remotes as a multi-document file at path.
func (store *Store) SaveRemotes(path string, remotes []Remote) error {
	trimmedPath, pathError := store.validate(path)
	if pathError != nil {
		return pathError
	}

	var buffer bytes.Buffer
	if encodeError := EncodeRemotes(&buffer, remotes); encodeError != nil {
		return fmt.Errorf(fileWriteErrorTemplateConstant, remotesSubjectConstant, trimmedPath, encodeError)
	}

	return store.replace(remotesSubjectConstant, trimmedPath, buffer.Bytes())
}

func (store *Store) replace(subject string, targetPath string, contents []byte) error {
	temporaryPath := targetPath + temporaryFileSuffixConstant
	if writeError := store.fileSystem.WriteFile(temporaryPath, contents, registryFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(fileWriteErrorTemplateConstant, subject, targetPath, writeError)
	}
	if renameError := store.fileSystem.Rename(temporaryPath, targetPath); renameError != nil {
		_ = store.fileSystem.Remove(temporaryPath)
		return fmt.Errorf(fileCommitErrorTemplateConstant, subject, targetPath, renameError)
	}
	return nil
}

func (store *Store) validate(path string) (string, error) {
	if store == nil || store.fileSystem == nil {
		return "", ErrFileSystemNotConfigured
	}
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return "", ErrPathRequired
	}
	return trimmedPath, nil
}
