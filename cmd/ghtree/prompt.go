package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/ghtree/pkg/loader"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// isTerminal checks if f is connected to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth is the width of stdout, or 0 when it is not a terminal.
func terminalWidth() int {
	if !isTerminal(os.Stdout) {
		return 0
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// newForm creates a form with appropriate settings based on TTY detection.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal(os.Stdin) {
		form = form.WithAccessible(true)
	}
	return form
}

// batchConfirmer gates large batch loads for the non-interactive commands.
// With yes every batch loads. Without a terminal to ask on, batches are
// declined and the user is told how to allow them.
func batchConfirmer(stderr io.Writer, yes bool, interactive bool) loader.Confirmer {
	return func(ctx context.Context, count int) (bool, error) {
		if yes {
			return true, nil
		}
		if !interactive {
			fmt.Fprintf(stderr, "Loading %d repositories needs confirmation; pass --yes to allow it.\n", count)
			return false, nil
		}
		ok := false
		form := newForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Load details for %d repositories?", count)).
				Description(fmt.Sprintf("This makes about %d GitHub API requests.", count*len(model.Categories()))).
				Affirmative("Load").
				Negative("Skip").
				Value(&ok),
		))
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, nil
			}
			return false, err
		}
		return ok, nil
	}
}

// promptToken reads a token, masked on a terminal and as one line from r
// otherwise.
func promptToken(r io.Reader) (string, error) {
	var token string
	if isTerminal(os.Stdin) {
		form := newForm(huh.NewGroup(
			huh.NewInput().
				Title("GitHub token").
				Description("A personal access token with repo and workflow read access").
				EchoMode(huh.EchoModePassword).
				Value(&token),
		))
		if err := form.Run(); err != nil {
			return "", err
		}
		return strings.TrimSpace(token), nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
