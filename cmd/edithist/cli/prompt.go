package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrPromptCancelled is returned by the prompt helpers below when the user
// explicitly quits an interactive selection (picking "Cancel" or typing
// 'q'), equivalent to the source's KeyboardInterrupt-on-'q' convention in
// find_entry_by_id. Callers treat this as a clean no-op, exit 0.
var ErrPromptCancelled = errors.New("cancelled by user")

// ErrInterrupted is returned when the user aborts a form outright
// (Ctrl-C/Esc) rather than picking an explicit cancel option, mapped by
// main to exit code 130 per spec.md §6.
var ErrInterrupted = errors.New("interrupted")

// accessibleMode reports whether interactive prompts should fall back to
// plain numbered stdin prompts instead of huh's TUI forms, mirroring the
// teacher's ACCESSIBLE env var convention documented in cli/root.go.
func accessibleMode() bool {
	if os.Getenv("ACCESSIBLE") != "" {
		return true
	}
	return !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd()))
}

// runForm executes a huh form built from groups. It does not consult
// accessibleMode(); callers check it first and use confirmPlain,
// pickAmbiguousPlain, or promptReviewActionPlain instead.
func runForm(groups ...*huh.Group) error {
	form := huh.NewForm(groups...)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrInterrupted
		}
		return err
	}
	return nil
}

// confirmYesNo asks a y/n question, using huh when attached to a TTY and a
// plain stdin prompt otherwise.
func confirmYesNo(title, description string) (bool, error) {
	if accessibleMode() {
		return confirmPlain(title)
	}

	var result bool
	err := runForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Value(&result),
	))
	if err != nil {
		return false, err
	}
	return result, nil
}

func confirmPlain(title string) (bool, error) {
	fmt.Printf("%s [y/n]: ", title)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

// pickAmbiguous presents a numbered list of candidate labels and returns
// the chosen index, or ErrPromptCancelled on 'q', grounded on
// mcpdiff_history.py's find_entry_by_id ambiguous-match prompt.
func pickAmbiguous(promptLabel string, labels []string) (int, error) {
	if accessibleMode() {
		return pickAmbiguousPlain(promptLabel, labels)
	}

	options := make([]huh.Option[int], 0, len(labels)+1)
	for i, l := range labels {
		options = append(options, huh.NewOption(l, i))
	}
	options = append(options, huh.NewOption("Cancel", -1))

	choice := -1
	err := runForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title(promptLabel).
			Options(options...).
			Value(&choice),
	))
	if err != nil {
		return -1, err
	}
	if choice < 0 {
		return -1, ErrPromptCancelled
	}
	return choice, nil
}

func pickAmbiguousPlain(promptLabel string, labels []string) (int, error) {
	fmt.Println(colorize(true, colorRed, promptLabel))
	for i, l := range labels {
		fmt.Printf("%s[%2d]%s %s\n", colorCyan, i+1, colorReset, l)
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("\n%sEnter number to select (1-%d) or 'q' to quit: %s", colorYellow, len(labels), colorReset)
		line, err := reader.ReadString('\n')
		if err != nil {
			return -1, err
		}
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "q" || line == "quit" {
			return -1, ErrPromptCancelled
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(labels) {
			fmt.Println(colorize(true, colorRed, "invalid selection"))
			continue
		}
		return n - 1, nil
	}
}

// reviewAction is one of the four choices review presents per pending edit.
type reviewAction string

// reviewAction values.
const (
	reviewAccept reviewAction = "a"
	reviewReject reviewAction = "r"
	reviewSkip   reviewAction = "s"
	reviewQuit   reviewAction = "q"
)

// promptReviewAction asks a/r/s/q for one pending edit during `review`.
func promptReviewAction(summary string) (reviewAction, error) {
	if accessibleMode() {
		return promptReviewActionPlain(summary)
	}

	var choice string
	err := runForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(summary).
			Options(
				huh.NewOption("Accept", string(reviewAccept)),
				huh.NewOption("Reject", string(reviewReject)),
				huh.NewOption("Skip", string(reviewSkip)),
				huh.NewOption("Quit", string(reviewQuit)),
			).
			Value(&choice),
	))
	if err != nil {
		return reviewQuit, err
	}
	return reviewAction(choice), nil
}

func promptReviewActionPlain(summary string) (reviewAction, error) {
	fmt.Println(summary)
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s[a]ccept / [r]eject / [s]kip / [q]uit: %s", colorYellow, colorReset)
		line, err := reader.ReadString('\n')
		if err != nil {
			return reviewQuit, err
		}
		line = strings.ToLower(strings.TrimSpace(line))
		switch reviewAction(line) {
		case reviewAccept, reviewReject, reviewSkip, reviewQuit:
			return reviewAction(line), nil
		default:
			fmt.Println(colorize(true, colorRed, "invalid choice"))
		}
	}
}
