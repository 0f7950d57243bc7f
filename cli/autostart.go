package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yllada/vpn-client/common"
)

const desktopEntry = `[Desktop Entry]
Type=Application
Name=%s
Exec=%s
Icon=network-vpn
X-GNOME-Autostart-enabled=true
`

// autostartDir is the XDG autostart directory.
func autostartDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", common.WrapError(err, "failed to get config directory")
	}
	return filepath.Join(dir, "autostart"), nil
}

func autostartFile(dir string) string {
	return filepath.Join(dir, common.ConfigDirName+".desktop")
}

// setAutostart writes or removes the desktop entry in dir.
func setAutostart(dir, exe string, enabled bool) error {
	path := autostartFile(dir)
	if !enabled {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove autostart entry: %w", err)
		}
		common.LogInfo("Removed autostart entry %s", path)
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create autostart dir: %w", err)
	}
	content := fmt.Sprintf(desktopEntry, common.AppName, exe)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write autostart entry: %w", err)
	}
	common.LogInfo("Wrote autostart entry %s", path)
	return nil
}
