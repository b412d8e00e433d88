package paths

import (
	"os"
	"path/filepath"
	"time"
)

const (
	AppDirName     = "wakeup"
	ConfigFileName = "wakeup-config.json"
	EnvFileName    = ".env"
	FiredFileName  = "fired.json"
	SilentFileName = "silent.json"
	LogFileName    = "wakeup.log"
	DBFileName     = "wakeup.db"
	StoreDirName   = "store"
	DirPerm        = 0755
	FilePerm       = 0644
)

// minuteLayout truncates a timestamp to the minute in local time.
const minuteLayout = "2006-01-02T15:04"

// FiredKey returns the map key recording that an alarm fired in the
// minute containing t.
func FiredKey(alarmID string, t time.Time) string {
	return alarmID + "@" + t.Format(minuteLayout)
}

// AtomicWrite writes data to path via a temporary file + rename to avoid
// partial writes. The parent directory is created if needed.
func AtomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), DirPerm); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, FilePerm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// DataDir returns the platform-specific data directory for wakeup:
//   - Windows: %APPDATA%\wakeup
//   - Unix:    ~/.config/wakeup
//
// Falls back to os.TempDir()/wakeup if neither is available.
func DataDir() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, AppDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppDirName)
	}
	return filepath.Join(home, ".config", AppDirName)
}

// StoreDir returns the directory holding the file-backed key/value store.
func StoreDir() string {
	return filepath.Join(DataDir(), StoreDirName)
}
