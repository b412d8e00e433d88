package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"
)

// autostartApp describes the login entry that starts the daemon.
func autostartApp(configPath string) (*autostart.App, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	// Resolve symlinks if any
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}
	return &autostart.App{
		Name:        "wakeup",
		DisplayName: "Wakeup alarms",
		Exec:        autostartExec(execPath, configPath),
	}, nil
}

// autostartExec is the command line run at login.
func autostartExec(execPath, configPath string) []string {
	cmd := []string{execPath}
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
		cmd = append(cmd, "--config", configPath)
	}
	return append(cmd, "run")
}

func autostartCmd(args []string, opts globalOpts) {
	app, err := autostartApp(opts.configPath)
	if err != nil {
		fatal("%v", err)
	}

	if len(args) == 0 {
		if app.IsEnabled() {
			fmt.Println("Autostart enabled")
		} else {
			fmt.Println("Autostart disabled")
		}
		return
	}

	switch args[0] {
	case "on":
		if app.IsEnabled() {
			fmt.Println("Autostart already enabled")
			return
		}
		if err := app.Enable(); err != nil {
			fatal("enabling autostart: %v", err)
		}
		fmt.Println("Autostart enabled")
	case "off":
		if !app.IsEnabled() {
			fmt.Println("Autostart already disabled")
			return
		}
		if err := app.Disable(); err != nil {
			fatal("disabling autostart: %v", err)
		}
		fmt.Println("Autostart disabled")
	default:
		fatal("usage: wakeup autostart [on|off]")
	}
}
