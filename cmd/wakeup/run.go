package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Mavwarf/wakeup/internal/alarm"
	"github.com/Mavwarf/wakeup/internal/scheduler"
	"github.com/Mavwarf/wakeup/internal/store"
)

// crlfWriter turns \n into \r\n, since a raw-mode terminal does not.
type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

func runCmd(opts globalOpts) {
	a := openApp(opts)
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out io.Writer = os.Stdout
	keys := make(chan byte, 1)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wakeup: cannot enter raw mode: %v\n", err)
		} else {
			defer term.Restore(fd, oldState)
			out = crlfWriter{os.Stdout}
			log.SetOutput(crlfWriter{os.Stderr})
			go readKeys(keys)
		}
	}
	logger := log.Default()

	sched, release := a.newScheduler(func(f scheduler.Firing) {
		printFiring(out, f)
	})
	defer release()

	if fs, ok := a.store.(*store.FileStore); ok {
		w, err := fs.Watch(alarm.CollectionKey, a.cfg.WatchDebounce(), func() {
			if err := a.mgr.Reload(); err != nil {
				logger.Printf("wakeup: reload: %v", err)
			}
		}, logger)
		if err != nil {
			logger.Printf("wakeup: watch: %v", err)
		} else {
			defer w.Close()
		}
	}

	armed := 0
	for _, al := range a.mgr.All() {
		if al.Enabled {
			armed++
		}
	}
	fmt.Fprintf(out, "wakeup %s: %d of %d alarms armed. Press s to stop speaking, q to quit.\n",
		version, armed, len(a.mgr.All()))

	sched.Start(ctx)
	defer sched.Wait()
	defer sched.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case k := <-keys:
			switch k {
			case 's', 'S':
				sched.StopSpeaking()
				fmt.Fprintln(out, "Speech stopped")
			case 'q', 'Q', 3: // q, Q, or Ctrl+C
				return
			}
		}
	}
}

// readKeys forwards single key presses from stdin until it fails.
func readKeys(keys chan<- byte) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			keys <- buf[0]
		}
		if err != nil {
			return
		}
	}
}
