//go:build windows

package speech

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/Mavwarf/wakeup/internal/shell"
)

// sayScript builds the SAPI script. Voice selection by culture is wrapped
// in try/catch so a missing voice keeps the default one.
func sayScript(u Utterance) string {
	voice := ""
	if u.Language != "" {
		voice = fmt.Sprintf(`try { $s.SelectVoiceByHints([System.Speech.Synthesis.VoiceGender]::NotSet, `+
			`[System.Speech.Synthesis.VoiceAge]::NotSet, 0, `+
			`[System.Globalization.CultureInfo]::GetCultureInfo('%s')) } catch {}; `,
			shell.EscapePowerShell(u.Language))
	}
	return fmt.Sprintf(`Add-Type -AssemblyName System.Speech; `+
		`$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; `+
		`%s`+
		`$s.Volume = %d; `+
		`$s.Rate = %d; `+
		`$s.Speak('%s'); `+
		`$s.Dispose()`, voice, u.Volume, sapiRate(u.Rate), shell.EscapePowerShell(u.Text))
}

func say(ctx context.Context, u Utterance) error {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", sayScript(u))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w\n%s", err, out)
	}
	return nil
}
