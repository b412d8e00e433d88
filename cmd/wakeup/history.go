package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Mavwarf/wakeup/internal/config"
	"github.com/Mavwarf/wakeup/internal/eventlog"
	"github.com/Mavwarf/wakeup/internal/paths"
	"github.com/Mavwarf/wakeup/internal/silent"
)

// openLog opens the history backend named in config, even when history
// recording is switched off, so old entries can still be read.
func openLog(opts globalOpts) (config.Config, eventlog.Store) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fatal("%v", err)
	}
	h, err := eventlog.Open(cfg.Store, paths.DataDir())
	if err != nil {
		fatal("%v", err)
	}
	return cfg, h
}

func historyCmd(args []string, opts globalOpts) {
	if len(args) > 0 {
		switch args[0] {
		case "log":
			historyLog(args[1:], opts)
			return
		case "clear":
			historyClear(opts)
			return
		case "clean":
			historyClean(args[1:], opts)
			return
		case "remove":
			historyRemove(args[1:], opts)
			return
		}
	}
	historySummary(args, opts)
}

func historySummary(args []string, opts globalOpts) {
	days, err := parseDays(args)
	if err != nil {
		fatal("%v", err)
	}

	_, h := openLog(opts)
	defer h.Close()

	entries, err := h.Entries(days)
	if err != nil {
		fatal("%v", err)
	}
	groups := eventlog.SummarizeByDay(entries, days)
	if len(groups) == 0 {
		if days == 0 {
			fmt.Println("No firings recorded.")
		} else {
			fmt.Println("No firings in the last", days, "days.")
		}
		return
	}

	var out strings.Builder
	renderSummaryTable(&out, groups)
	fmt.Print(out.String())
}

// parseDays reads an optional day count; "all" means no limit.
func parseDays(args []string) (int, error) {
	if len(args) == 0 {
		return 7, nil
	}
	if args[0] == "all" {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("days must be a positive integer or \"all\"")
	}
	return n, nil
}

func historyLog(args []string, opts globalOpts) {
	count := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fatal("count must be a positive integer")
		}
		count = n
	}

	_, h := openLog(opts)
	defer h.Close()

	content, err := h.ReadContent()
	if err != nil {
		fatal("%v", err)
	}
	blocks := eventlog.SplitBlocks(content)
	if len(blocks) == 0 {
		fmt.Println("History is empty. Enable it with \"history\": true in config.")
		return
	}
	if len(blocks) > count {
		blocks = blocks[len(blocks)-count:]
	}
	fmt.Println(strings.Join(blocks, "\n\n"))
}

func historyClear(opts globalOpts) {
	_, h := openLog(opts)
	defer h.Close()
	if err := h.Clear(); err != nil {
		fatal("%v", err)
	}
	fmt.Println("History cleared.")
}

func historyClean(args []string, opts globalOpts) {
	if len(args) != 1 {
		fatal("usage: wakeup history clean <days>")
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days <= 0 {
		fatal("days must be a positive integer")
	}
	_, h := openLog(opts)
	defer h.Close()

	removed, err := h.Clean(days)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Removed %d entries older than %d days.\n", removed, days)
}

func historyRemove(args []string, opts globalOpts) {
	if len(args) != 1 {
		fatal("usage: wakeup history remove <id>")
	}
	id := args[0]
	// Prefer the full id of a live alarm; deleted alarms need the full id.
	a := openApp(opts)
	if al, err := a.mgr.Find(id); err == nil {
		id = al.ID
	}
	a.close()

	_, h := openLog(opts)
	defer h.Close()
	removed, err := h.RemoveAlarm(id)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Removed %d entries for %s.\n", removed, shortID(id))
}

func silentCmd(args []string, opts globalOpts) {
	if len(args) == 0 {
		if until, ok := silent.SilentUntil(); ok {
			fmt.Printf("Silent until %s\n", until.Format("15:04:05"))
		} else {
			fmt.Println("Not silent")
		}
		return
	}

	if args[0] == "off" {
		silent.Disable()
		fmt.Println("Silent mode disabled")
		logSilent(opts, func(h eventlog.Store) error { return h.LogSilentDisable() })
		return
	}

	d, err := time.ParseDuration(args[0])
	if err != nil {
		fatal("invalid duration %q (examples: 30s, 5m, 1h, 2h30m)", args[0])
	}
	if d <= 0 {
		fatal("duration must be positive")
	}

	reason := strings.Join(args[1:], " ")
	silent.Enable(d, reason)
	fmt.Printf("Silent until %s\n", time.Now().Add(d).Format("15:04:05"))
	logSilent(opts, func(h eventlog.Store) error { return h.LogSilentEnable(d) })
}

// logSilent records a silent mode change when history is on.
func logSilent(opts globalOpts, write func(eventlog.Store) error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil || !cfg.History {
		return
	}
	h, err := eventlog.Open(cfg.Store, paths.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "wakeup: history: %v\n", err)
		return
	}
	defer h.Close()
	if err := write(h); err != nil {
		fmt.Fprintf(os.Stderr, "wakeup: history: %v\n", err)
	}
}

// --- Table layout constants ---

const (
	colLabel  = 28 // width of alarm label column
	colNumber = 8  // width of numeric columns
	colGap    = 2
	sepWidth  = colLabel + 2*(colGap+colNumber) + 2
)

// --- ANSI color helpers (disabled when NO_COLOR env var is set) ---

var noColor = os.Getenv("NO_COLOR") != ""

func ansi(code, s string) string {
	if noColor {
		return s
	}
	return code + s + "\033[0m"
}

func bold(s string) string   { return ansi("\033[1m", s) }
func dim(s string) string    { return ansi("\033[2m", s) }
func green(s string) string  { return ansi("\033[32m", s) }
func yellow(s string) string { return ansi("\033[33m", s) }

// fmtNum formats an integer with dot thousands separators (e.g. 1.234).
func fmtNum(n int) string {
	if n < 0 {
		return "-" + fmtNum(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// padL pads s to width with spaces on the left.
func padL(s string, width int) string {
	if pad := width - len(s); pad > 0 {
		return strings.Repeat(" ", pad) + s
	}
	return s
}

// padR pads s to width with spaces on the right, truncating long values.
func padR(s string, width int) string {
	if len(s) > width {
		return s[:width-1] + "~"
	}
	return s + strings.Repeat(" ", width-len(s))
}

// colorPadL applies a color function to s, then left-pads to width
// (accounting for invisible ANSI escape bytes).
func colorPadL(colorFn func(string) string, s string, width int) string {
	colored := colorFn(s)
	return padL(colored, width+(len(colored)-len(s)))
}

type alarmCounts struct {
	label           string
	fired, silenced int
}

// aggregateGroups totals firings per alarm across all day groups,
// sorted by label.
func aggregateGroups(groups []eventlog.DayGroup) []alarmCounts {
	byID := map[string]*alarmCounts{}
	// Groups are newest first, so the first label seen is the latest.
	for _, dg := range groups {
		for _, s := range dg.Summaries {
			c, ok := byID[s.AlarmID]
			if !ok {
				c = &alarmCounts{label: s.Label}
				byID[s.AlarmID] = c
			}
			c.fired += s.Fired
			c.silenced += s.Silenced
		}
	}
	out := make([]alarmCounts, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].label < out[j].label })
	return out
}

// renderSummaryTable writes the date range and one row per alarm.
func renderSummaryTable(w *strings.Builder, groups []eventlog.DayGroup) {
	newest, oldest := groups[0].Date, groups[len(groups)-1].Date
	if len(groups) == 1 {
		fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("%s  (%s)", newest.Format("2006-01-02"), newest.Format("Monday"))))
	} else {
		fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("%s to %s  (%d days with firings)",
			oldest.Format("2006-01-02"), newest.Format("2006-01-02"), len(groups))))
	}

	fmt.Fprintf(w, "  %s  %s  %s\n", padR("Alarm", colLabel), padL("Fired", colNumber), padL("Silenced", colNumber))
	sep := "  " + strings.Repeat("-", sepWidth-2) + "\n"
	w.WriteString(sep)

	totalFired, totalSilenced := 0, 0
	for _, c := range aggregateGroups(groups) {
		fmt.Fprintf(w, "  %s  %s  %s\n",
			padR(c.label, colLabel),
			colorPadL(green, fmtNum(c.fired), colNumber),
			colorPadL(yellow, fmtNum(c.silenced), colNumber))
		totalFired += c.fired
		totalSilenced += c.silenced
	}

	w.WriteString(sep)
	fmt.Fprintf(w, "  %s  %s  %s\n",
		bold(padR("Total", colLabel)),
		padL(fmtNum(totalFired), colNumber),
		padL(fmtNum(totalSilenced), colNumber))
}
