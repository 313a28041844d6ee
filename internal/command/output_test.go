package command

import (
	"bytes"
	"os"
	"testing"

	"github.com/poruru/efstack/internal/infra/interaction"
)

func TestResolveEmojiEnabled(t *testing.T) {
	origIsTerminal := interaction.IsTerminal
	t.Cleanup(func() { interaction.IsTerminal = origIsTerminal })
	interaction.IsTerminal = func(*os.File) bool { return true }

	if resolveEmojiEnabled(&bytes.Buffer{}, false, mapLookup(nil)) {
		t.Fatalf("non-file writers must not use emoji")
	}
	if !resolveEmojiEnabled(os.Stdout, false, mapLookup(nil)) {
		t.Fatalf("terminal output should use emoji")
	}
	if resolveEmojiEnabled(os.Stdout, true, mapLookup(nil)) {
		t.Fatalf("--no-emoji must win")
	}
	if resolveEmojiEnabled(os.Stdout, false, mapLookup(map[string]string{"EFSTACK_NO_EMOJI": "1"})) {
		t.Fatalf("EFSTACK_NO_EMOJI must disable emoji")
	}
	if resolveEmojiEnabled(os.Stdout, false, mapLookup(map[string]string{"TERM": "dumb"})) {
		t.Fatalf("dumb terminals must not use emoji")
	}
}

func TestCLINameOverride(t *testing.T) {
	t.Setenv("CLI_CMD", "efs")
	if cliName() != "efs" {
		t.Fatalf("unexpected cli name: %s", cliName())
	}
	t.Setenv("CLI_CMD", "")
	if cliName() != "efstack" {
		t.Fatalf("unexpected default cli name: %s", cliName())
	}
}
