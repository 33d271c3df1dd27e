package attachments

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/simonbloom/vibogit-sub001/internal/settings"
	"github.com/simonbloom/vibogit-sub001/internal/storage"
)

const attachmentsDirName = "attachments"

// API stores pasted images for commit and PR descriptions and exposes them
// to the frontend via Wails binding. Files live under the app data
// directory unless settings point somewhere else.
type API struct {
	store *settings.Store
}

func NewAPI(store *settings.Store) *API { return &API{store: store} }

// SavePastedImage persists a clipboard image and returns its absolute path.
func (a *API) SavePastedImage(dataBase64, mimeType string) (string, error) {
	encoded := strings.TrimSpace(dataBase64)
	if encoded == "" {
		return "", fmt.Errorf("image data is required")
	}
	mediaType := strings.TrimSpace(mimeType)
	if mediaType == "" {
		mediaType = "image/png"
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("unsupported mime type %q", mediaType)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode image data: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("image data is empty")
	}

	ext := ".png"
	if candidates, err := mime.ExtensionsByType(mediaType); err == nil {
		for _, c := range candidates {
			if c != "" {
				ext = c
				break
			}
		}
	} else if strings.Contains(mediaType, "jpeg") {
		ext = ".jpg"
	}

	dir, err := a.attachmentsDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create attachments directory: %w", err)
	}
	target := filepath.Join(dir, uuid.NewString()+ext)
	if err := os.WriteFile(target, raw, 0o600); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return filepath.Abs(target)
}

// DeleteAttachment removes a saved attachment. Paths outside the managed
// directory are refused.
func (a *API) DeleteAttachment(path string) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	target, err := filepath.Abs(trimmed)
	if err != nil {
		return fmt.Errorf("resolve attachment path: %w", err)
	}
	dir, err := a.attachmentsDir()
	if err != nil {
		return err
	}
	rootAbs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve attachments root: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, target)
	if err != nil {
		return fmt.Errorf("resolve relative path: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("attachment path outside managed directory")
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

func (a *API) attachmentsDir() (string, error) {
	if a.store != nil {
		if base := strings.TrimSpace(a.store.Get().ImageBasePath); base != "" {
			return filepath.Join(base, attachmentsDirName), nil
		}
	}
	root, err := storage.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, attachmentsDirName), nil
}
