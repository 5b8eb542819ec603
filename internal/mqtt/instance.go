package mqtt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// InstanceID returns the stable identifier that names this ferryd in
// Home Assistant discovery. It lives in a file under dataDir: the
// first run mints a UUIDv7 and saves it, every later run reads the
// same value back. Renaming device_name in the config therefore keeps
// the same HA device, and entity history survives reconfiguration.
func InstanceID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, "instance_id")

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
		// Empty file, likely an interrupted write. Mint a fresh one.
	} else if !errors.Is(err, fs.ErrNotExist) {
		// Minting a replacement over an unreadable file would orphan
		// the device's entity history in HA.
		return "", fmt.Errorf("read instance ID: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("mint instance ID: %w", err)
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("save instance ID to %s: %w", path, err)
	}
	return id.String(), nil
}
