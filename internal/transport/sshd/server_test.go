package sshd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/daybook/internal/calendar"
	"github.com/zhouzirui/daybook/internal/model/journal"
	"github.com/zhouzirui/daybook/internal/service/session"
)

type staticGenerator struct{}

func (staticGenerator) Generate(_ context.Context, _ string) string {
	return "What comes next?"
}

type channel struct {
	io.Reader
	io.Writer
}

func fixedResolver() *calendar.Resolver {
	instant := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	return calendar.NewResolverAt("UTC", func() time.Time { return instant })
}

// Interactive clients transmit CR on Enter with the local terminal in raw
// mode; the terminal channel has to turn that into complete lines for the
// session.
func TestTerminalChannelDrivesSessionWithCRInput(t *testing.T) {
	store := journal.NewMemoryStore()
	svc := session.NewService(store, staticGenerator{}, fixedResolver(), 7, 80)

	input := "went for a run\r::save\r:quit\r"
	var out bytes.Buffer
	ch := newTerminalChannel(channel{Reader: strings.NewReader(input), Writer: &out})

	if err := svc.Run(context.Background(), "SHA256:terminal", ch); err != nil {
		t.Fatalf("Run err: %v", err)
	}

	if !strings.Contains(out.String(), "Saved.") {
		t.Fatalf("save never completed:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Bye.") {
		t.Fatalf(":quit never fired:\n%s", out.String())
	}

	subject, err := store.GetOrCreateSubject(context.Background(), "SHA256:terminal")
	if err != nil {
		t.Fatalf("GetOrCreateSubject err: %v", err)
	}
	entry, err := store.GetEntry(context.Background(), subject.ID, calendar.NewDay(2024, time.March, 1))
	if err != nil {
		t.Fatalf("GetEntry err: %v", err)
	}
	if entry.Body != "went for a run" {
		t.Fatalf("body = %q", entry.Body)
	}
}

// Output written through the terminal channel needs CRLF line endings, or a
// raw-mode client renders a staircase.
func TestTerminalChannelConvertsOutputNewlines(t *testing.T) {
	var out bytes.Buffer
	ch := newTerminalChannel(channel{Reader: strings.NewReader(""), Writer: &out})

	if _, err := io.WriteString(ch, "line one\nline two\n"); err != nil {
		t.Fatalf("Write err: %v", err)
	}
	if !strings.Contains(out.String(), "line one\r\nline two\r\n") {
		t.Fatalf("output not CRLF converted: %q", out.String())
	}
}
