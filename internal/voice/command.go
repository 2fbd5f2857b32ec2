package voice

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// localePlaceholder in a command argument is replaced by the locale.
const localePlaceholder = "{locale}"

// CommandSpeaker pipes text to an external synthesis program, for example
// `espeak-ng -v {locale} -s 140`.
type CommandSpeaker struct {
	Command []string
}

// NewCommandSpeaker parses a whitespace separated command line. It returns
// nil when the command is empty.
func NewCommandSpeaker(command string) *CommandSpeaker {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return &CommandSpeaker{Command: fields}
}

// Speak implements Speaker.
func (s *CommandSpeaker) Speak(ctx context.Context, text, language string) error {
	cmd := exec.CommandContext(ctx, s.Command[0], expand(s.Command[1:], language)...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.Command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CommandRecognizer runs an external recognition program once per listening
// session and treats each line it prints as a transcript candidate.
type CommandRecognizer struct {
	Command []string
	Logger  zerolog.Logger
}

// NewCommandRecognizer parses a whitespace separated command line. It returns
// nil when the command is empty.
func NewCommandRecognizer(command string, logger zerolog.Logger) *CommandRecognizer {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return &CommandRecognizer{Command: fields, Logger: logger}
}

// Recognize implements Recognizer.
func (r *CommandRecognizer) Recognize(ctx context.Context, language string) iter.Seq[string] {
	return func(yield func(string) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		cmd := exec.CommandContext(ctx, r.Command[0], expand(r.Command[1:], language)...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			r.Logger.Warn().Err(err).Msg("speech recognition unavailable")
			return
		}
		if err := cmd.Start(); err != nil {
			r.Logger.Warn().Err(err).Msg("speech recognition failed to start")
			return
		}
		defer cmd.Wait()

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}
}

func expand(args []string, language string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, localePlaceholder, Locale(language))
	}
	return out
}
