package voice

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/models"
)

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
	langs []string
	err   error
}

func (s *recordingSpeaker) Speak(ctx context.Context, text, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.langs = append(s.langs, language)
	return s.err
}

type scriptedRecognizer struct {
	lines []string
}

func (r scriptedRecognizer) Recognize(ctx context.Context, language string) iter.Seq[string] {
	return slices.Values(r.lines)
}

func TestAnnounceStripsMarkup(t *testing.T) {
	sp := &recordingSpeaker{}
	b := NewBridge(sp, nil, zerolog.Nop())

	b.Announce(models.Message{ID: "1", Content: "**Tips**\n• Rest", Language: "hi"})
	b.Wait()

	if len(sp.texts) != 1 || sp.texts[0] != "Tips\n- Rest" {
		t.Fatalf("unexpected spoken text %q", sp.texts)
	}
	if sp.langs[0] != "hi" {
		t.Fatalf("expected language hi, got %q", sp.langs[0])
	}
}

func TestAnnounceSwallowsErrors(t *testing.T) {
	sp := &recordingSpeaker{err: errors.New("no audio device")}
	b := NewBridge(sp, nil, zerolog.Nop())

	b.Announce(models.Message{ID: "1", Content: "hello"})
	b.Wait()

	if len(sp.texts) != 1 {
		t.Fatal("expected speak to be attempted")
	}
}

func TestAnnounceSkipsEmpty(t *testing.T) {
	sp := &recordingSpeaker{}
	b := NewBridge(sp, nil, zerolog.Nop())

	b.Announce(models.Message{ID: "1", Content: "\n\n"})
	b.Wait()

	if len(sp.texts) != 0 {
		t.Fatal("expected nothing spoken")
	}
}

func TestListenFiltersBlankTranscripts(t *testing.T) {
	b := NewBridge(nil, scriptedRecognizer{lines: []string{"", " I have ", "  ", "a headache"}}, zerolog.Nop())

	var got []string
	for tr := range b.Listen(context.Background(), "en") {
		got = append(got, tr)
	}
	if !slices.Equal(got, []string{"I have", "a headache"}) {
		t.Fatalf("unexpected transcripts %q", got)
	}

	// A second session starts over.
	got = slices.Collect(b.Listen(context.Background(), "en"))
	if len(got) != 2 {
		t.Fatalf("expected restartable session, got %q", got)
	}
}

func TestListenStopsEarly(t *testing.T) {
	b := NewBridge(nil, scriptedRecognizer{lines: []string{"one", "two", "three"}}, zerolog.Nop())

	for tr := range b.Listen(context.Background(), "en") {
		if tr != "one" {
			t.Fatalf("iteration continued after break: %q", tr)
		}
		break
	}
}

func TestListenWithoutRecognizer(t *testing.T) {
	b := NewBridge(nil, nil, zerolog.Nop())
	if b.CanListen() {
		t.Fatal("expected no recognizer")
	}
	if got := slices.Collect(b.Listen(context.Background(), "en")); len(got) != 0 {
		t.Fatalf("expected empty session, got %q", got)
	}
}

func TestLocale(t *testing.T) {
	cases := map[string]string{"hi": "hi-IN", "HI": "hi-IN", "en": "en-US", "fr": "en-US", "": "en-US"}
	for in, want := range cases {
		if got := Locale(in); got != want {
			t.Errorf("Locale(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCommandConstructors(t *testing.T) {
	if NewCommandSpeaker("  ") != nil {
		t.Fatal("expected nil speaker for empty command")
	}
	sp := NewCommandSpeaker("espeak-ng -v {locale}")
	if got := expand(sp.Command[1:], "hi"); !slices.Equal(got, []string{"-v", "hi-IN"}) {
		t.Fatalf("unexpected args %q", got)
	}
	if NewCommandRecognizer("", zerolog.Nop()) != nil {
		t.Fatal("expected nil recognizer for empty command")
	}
}
