package whispercpp

import "testing"

func TestTranscriptText(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"segments":[{"text":"  open the settings menu "},{"text":""},{"text":"click export"}]}`)
	got, err := transcriptText(raw)
	if err != nil {
		t.Fatalf("transcriptText: %v", err)
	}
	if got != "open the settings menu click export" {
		t.Fatalf("got %q", got)
	}
}

func TestTranscriptTextBadJSON(t *testing.T) {
	t.Parallel()

	if _, err := transcriptText([]byte("not json")); err == nil {
		t.Fatalf("expected error")
	}
}
