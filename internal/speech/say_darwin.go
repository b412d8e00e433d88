//go:build darwin

package speech

import (
	"context"
	"fmt"
	"os/exec"
)

func say(ctx context.Context, u Utterance) error {
	cmd := exec.CommandContext(ctx, "say", sayArgs(u)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w\n%s", err, out)
	}
	return nil
}
