package exam

import (
	"errors"
	"testing"
)

func TestTranscriptFinalsAppend(t *testing.T) {
	tr := newTranscript(nil)
	tr.OnFinal("first stretch.", 0.8)
	tr.OnInterim("second str")
	tr.OnFinal("second stretch.", 0.6)

	text, conf := tr.Result()
	if want := "first stretch. second stretch."; text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if want := 0.7; conf != want {
		t.Errorf("confidence = %v, want %v", conf, want)
	}
}

func TestTranscriptInterimFallback(t *testing.T) {
	tr := newTranscript(nil)
	tr.OnInterim("half an ans")
	tr.OnInterim("half an answer")

	text, conf := tr.Result()
	if want := "half an answer"; text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if conf != 0 {
		t.Errorf("confidence = %v, want 0 with no finals", conf)
	}
}

func TestTranscriptIgnoresEmptyFinal(t *testing.T) {
	tr := newTranscript(nil)
	tr.OnFinal("  ", 0.9)

	if text, _ := tr.Result(); text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestTranscriptErrorBuffered(t *testing.T) {
	tr := newTranscript(nil)
	tr.OnError(errors.New("first"))
	tr.OnError(errors.New("second")) // dropped, channel holds one

	select {
	case err := <-tr.errCh:
		if err.Error() != "first" {
			t.Errorf("err = %v, want first", err)
		}
	default:
		t.Fatal("no error buffered")
	}
}

func TestTranscriptInterimCallback(t *testing.T) {
	var got string
	tr := newTranscript(func(text string) { got = text })
	tr.OnInterim("partial")
	if got != "partial" {
		t.Errorf("callback got %q, want %q", got, "partial")
	}
}
