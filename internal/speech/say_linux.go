//go:build linux

package speech

import (
	"context"
	"fmt"
	"os/exec"
)

func say(ctx context.Context, u Utterance) error {
	for _, bin := range []string{"espeak-ng", "espeak"} {
		path, err := exec.LookPath(bin)
		if err != nil {
			continue
		}
		out, err := exec.CommandContext(ctx, path, espeakArgs(u, true)...).CombinedOutput()
		if err == nil || ctx.Err() != nil || u.Language == "" {
			return wrapOutput(err, out)
		}
		// Unknown voice: retry with the default one.
		out, err = exec.CommandContext(ctx, path, espeakArgs(u, false)...).CombinedOutput()
		return wrapOutput(err, out)
	}
	return fmt.Errorf("speech not available: install espeak-ng or espeak")
}

func wrapOutput(err error, out []byte) error {
	if err != nil {
		return fmt.Errorf("%w\n%s", err, out)
	}
	return nil
}
