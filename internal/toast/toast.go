// Package toast shows desktop notifications for fired alarms.
package toast

// Notifier shows alarm notifications. A disabled Notifier does nothing,
// for hosts where notifications are turned off in config.
type Notifier struct {
	Enabled bool
}

// Notify shows a notification when enabled.
func (n *Notifier) Notify(title, body string) error {
	if n == nil || !n.Enabled {
		return nil
	}
	return Show(title, body)
}
