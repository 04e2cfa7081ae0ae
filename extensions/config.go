package extensions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/archivekit/ocfl/backend"
)

const (
	extensionsDir       = "extensions"
	extensionConfigFile = "config.json"
)

// ReadConfig reads the extension's config.json from
// root/extensions/<name>/config.json and unmarshals it into ext. A missing
// config file is not an error: the extension keeps its defaults.
func ReadConfig(ctx context.Context, b backend.Interface, root string, ext Extension) error {
	confPath := path.Join(root, extensionsDir, ext.Name(), extensionConfigFile)
	jsonBytes, err := backend.ReadAll(ctx, b, confPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%s: %w", ext.Name(), err)
	}
	if err := json.Unmarshal(jsonBytes, ext); err != nil {
		return fmt.Errorf("%s: decoding config: %w", ext.Name(), err)
	}
	return nil
}

// WriteConfig writes ext's configuration to
// root/extensions/<name>/config.json.
func WriteConfig(ctx context.Context, b backend.Interface, root string, ext Extension) error {
	confPath := path.Join(root, extensionsDir, ext.Name(), extensionConfigFile)
	jsonBytes, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("%s: encoding config: %w", ext.Name(), err)
	}
	if _, err := b.Write(ctx, confPath, bytes.NewReader(jsonBytes), true); err != nil {
		return fmt.Errorf("%s: writing config: %w", ext.Name(), err)
	}
	return nil
}
