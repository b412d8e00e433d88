//go:build linux

package toast

import (
	"fmt"
	"os/exec"
)

// Show displays a Linux desktop notification using notify-send. Alarms
// use critical urgency so they stay on screen until dismissed.
func Show(title, message string) error {
	cmd := exec.Command("notify-send", "--urgency=critical", "--app-name=wakeup", "--", title, message)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("toast failed: %w\n%s", err, out)
	}
	return nil
}
