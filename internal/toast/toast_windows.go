//go:build windows

package toast

import (
	"fmt"
	"os/exec"

	"github.com/Mavwarf/wakeup/internal/shell"
)

// showScript returns the PowerShell script for a Windows 10+ toast using
// the ToastNotificationManager XML API. The alarm scenario keeps the toast
// on screen until the user dismisses it.
func showScript(title, message string) string {
	t := shell.EscapePowerShell(shell.EscapeXML(title))
	m := shell.EscapePowerShell(shell.EscapeXML(message))

	return fmt.Sprintf(`
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom, ContentType = WindowsRuntime] | Out-Null

$xml = New-Object Windows.Data.Xml.Dom.XmlDocument
$xml.LoadXml('<toast scenario="alarm"><visual><binding template="ToastGeneric"><text>%s</text><text>%s</text><text placement="attribution">via wakeup</text></binding></visual><actions><action activationType="system" arguments="dismiss" content=""/></actions></toast>')
$toast = [Windows.UI.Notifications.ToastNotification]::new($xml)
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('{1AC14E77-02E7-4E5D-B744-2EB1AE5198B7}\WindowsPowerShell\v1.0\powershell.exe').Show($toast)
`, t, m)
}

// Show displays a Windows toast notification.
func Show(title, message string) error {
	cmd := exec.Command("powershell", "-NoProfile", "-Command", showScript(title, message))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("toast failed: %w\n%s", err, out)
	}
	return nil
}
