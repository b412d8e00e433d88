package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// globalOpts holds the flags accepted before or after any command.
type globalOpts struct {
	configPath string
	volume     int // -1 when not given
	announce   bool
}

func main() {
	args := os.Args[1:]
	opts := globalOpts{volume: -1}

	// Parse flags
	filtered := args[:0]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--volume", "-v":
			if i+1 < len(args) {
				v, err := strconv.Atoi(args[i+1])
				if err != nil || v < 0 || v > 100 {
					fatal("volume must be a number between 0 and 100")
				}
				opts.volume = v
				i++
			} else {
				fatal("--volume requires a value (0-100)")
			}
		case "--config", "-c":
			if i+1 < len(args) {
				opts.configPath = args[i+1]
				i++
			} else {
				fatal("--config requires a file path")
			}
		case "--announce":
			opts.announce = true
		default:
			filtered = append(filtered, args[i])
		}
	}

	if len(filtered) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd, rest := filtered[0], filtered[1:]
	switch cmd {
	case "help", "-h", "--help":
		printUsage()
	case "version", "-V", "--version":
		printVersion()
	case "run":
		runCmd(opts)
	case "list", "ls", "-l", "--list":
		listCmd(opts)
	case "add":
		addCmd(rest, opts)
	case "edit":
		editCmd(rest, opts)
	case "delete", "rm":
		deleteCmd(rest, opts)
	case "enable":
		setEnabledCmd(rest, opts, true)
	case "disable":
		setEnabledCmd(rest, opts, false)
	case "toggle":
		toggleCmd(rest, opts)
	case "fire":
		fireCmd(rest, opts)
	case "attach":
		attachCmd(rest, opts)
	case "retrim":
		retrimCmd(rest, opts)
	case "detach":
		detachCmd(rest, opts)
	case "sounds":
		soundsCmd()
	case "play":
		playCmd(rest, opts)
	case "trim":
		trimCmd(rest, opts)
	case "history":
		historyCmd(rest, opts)
	case "silent":
		silentCmd(rest, opts)
	case "export":
		exportCmd(rest, opts)
	case "import":
		importCmd(rest, opts)
	case "autostart":
		autostartCmd(rest, opts)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// fatal prints an error message to stderr and exits with status 1.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("wakeup %s (%s) %s/%s\n", version, buildDate, runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Printf("wakeup %s - Speaking alarm clock\n", version)
	fmt.Println(`
Usage:
  wakeup [options] <command> [args]

Options:
  --volume, -v <0-100>   Override volume (default: config or 100)
  --config, -c <path>    Path to wakeup-config.json or .yaml
  --announce             Speak the new alarm time after add/edit

Alarms:
  list                               List alarms with their next firing
  add <HH:MM> [alarm flags]          Create an alarm
  edit <id> [--time HH:MM] [flags]   Change an alarm
  delete <id...>                     Delete one or more alarms
  enable <id...>                     Arm one or more alarms
  disable <id...>                    Disarm one or more alarms
  toggle <id>                        Arm or disarm an alarm
  fire <id>                          Ring an alarm now, without disarming it

Alarm flags:
  --label <text>        Shown in notifications and history
  --message <text>      Spoken text; {label}, {Label}, {time}, {day} expand
  --sound <id>          Built-in tone (see "wakeup sounds")
  --repeat <policy>     never, daily, weekdays or weekends
  --language <tag>      Speech language, e.g. en-GB
  --say <1-5>           How many times the message is spoken

Audio:
  attach <id> <file> [--start s] [--end s] [--rate hz]
                                     Use a trimmed clip (mp3, wav, ogg, m4a)
  retrim <id> [--start s] [--end s]  Cut the attached clip again
  detach <id>                        Go back to the built-in tone
  sounds                             List built-in tones
  play <sound|file>                  Play a tone or audio file
  trim <in> <out.wav> [--start s] [--end s] [--rate hz]
                                     Trim a file to WAV without an alarm

Daemon & tools:
  run                    Fire alarms until interrupted (s: stop speaking, q: quit)
  history [days|all]     Firing summary (default: 7 days)
  history log [count]    Raw history entries
  history clean <days>   Drop entries older than days
  history remove <id>    Drop all entries for one alarm
  history clear          Delete the history
  silent [duration|off]  Mute sound and speech (e.g. 30m, 2h)
  export [file.ics]      Write enabled alarms as iCalendar (default: stdout)
  import <file.ics>      Add alarms from iCalendar events
  autostart [on|off]     Start "wakeup run" at login
  version, -V            Show version and build date
  help, -h, --help       Show this help message

Config resolution:
  1. --config <path>                         (explicit)
  2. wakeup-config.json/.yaml next to binary (portable)
  3. ~/.config/wakeup/wakeup-config.json    (user default, %APPDATA% on Windows)
  WAKEUP_* environment variables (or a .env file) override config values.

Examples:
  wakeup add 07:30 --repeat weekdays --label Work --say 2
  wakeup --announce edit 3f2a --time 07:45
  wakeup attach 3f2a song.mp3 --start 12 --end 40
  wakeup -v 60 run`)
}
