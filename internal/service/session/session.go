// Package session implements the interactive journaling loop: one connected
// subject, one journal day, a line-oriented command protocol, and the
// save-then-queue-tomorrow's-question pipeline.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/zhouzirui/daybook/internal/calendar"
	"github.com/zhouzirui/daybook/internal/model/journal"
	"github.com/zhouzirui/daybook/internal/service/prompt"
)

// ErrIdentityRequired refuses a session that arrives without a usable
// subject identity. Fatal to the connection attempt, nothing else is.
var ErrIdentityRequired = errors.New("session: subject identity is required")

// Generator produces tomorrow's question from the text just saved. It must
// not fail: degraded implementations return a static question.
type Generator interface {
	Generate(ctx context.Context, priorText string) string
}

// LineChannel is the bidirectional line channel the transport hands to a
// session: blocking line reads plus plain writes. The transport owns the
// line discipline (newline splitting, or terminal handling for PTY
// connections); the session only sees whole lines.
type LineChannel interface {
	io.Writer
	// ReadLine blocks for the next input line, returning io.EOF once the
	// channel closes.
	ReadLine() (string, error)
}

// NewScannerChannel adapts a raw newline-delimited byte stream (piped input,
// ssh -T, tests) into a LineChannel.
func NewScannerChannel(rw io.ReadWriter) LineChannel {
	scanner := bufio.NewScanner(rw)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &scannerChannel{Writer: rw, scanner: scanner}
}

type scannerChannel struct {
	io.Writer
	scanner *bufio.Scanner
}

func (c *scannerChannel) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(c.scanner.Text(), "\r"), nil
}

const welcome = `╭──────────────────────────────────────────────╮
│  Daybook                                     │
│  Commands: :edit  :history  :view YYYY-MM-DD │
│            :quit                             │
╰──────────────────────────────────────────────╯
`

const separator = "--------------------------------------------------"

// Service runs journaling sessions against one store and one generator.
type Service struct {
	store        journal.Store
	generator    Generator
	resolver     *calendar.Resolver
	historyLimit int
	previewWidth int
}

// NewService wires the session service to its collaborators.
func NewService(store journal.Store, generator Generator, resolver *calendar.Resolver, historyLimit, previewWidth int) *Service {
	if historyLimit <= 0 {
		historyLimit = 7
	}
	if previewWidth <= 0 {
		previewWidth = 80
	}
	return &Service{
		store:        store,
		generator:    generator,
		resolver:     resolver,
		historyLimit: historyLimit,
		previewWidth: previewWidth,
	}
}

// Run drives one session over a bidirectional line channel. fingerprint is
// the opaque identity the transport derived; the session never inspects
// authentication material. Run returns when the subject quits or the channel
// closes. Channel closure mid-loop terminates silently.
func (s *Service) Run(ctx context.Context, fingerprint string, ch LineChannel) error {
	if strings.TrimSpace(fingerprint) == "" {
		fmt.Fprintf(ch, "Public-key auth required.\n")
		return ErrIdentityRequired
	}

	subject, err := s.store.GetOrCreateSubject(ctx, fingerprint)
	if err != nil {
		fmt.Fprintf(ch, "Storage unavailable, please try again later.\n")
		return fmt.Errorf("session: provision subject: %w", err)
	}

	sess := &state{
		svc:     s,
		subject: subject,
		today:   s.resolver.Today(),
		out:     ch,
	}
	sess.greet(ctx)

	for {
		sess.print("> ")
		line, err := ch.ReadLine()
		if errors.Is(err, io.EOF) {
			// Channel closed; nothing left to write to.
			return nil
		}
		if err != nil {
			// Not a clean close (oversized line, transport fault). Log it so
			// the disconnect is attributable.
			log.Printf("[session] read line: %v", err)
			return fmt.Errorf("session: read line: %w", err)
		}

		if line == ":quit" {
			sess.print("Bye.\n")
			return nil
		}
		sess.handle(ctx, line)
	}
}

// state is the per-connection accumulator: the resolved day and the unsaved
// buffer. The command and editing sub-modes share this one buffer, with
// :edit clearing it and unrecognized input appending to it; it is never
// persisted.
type state struct {
	svc     *Service
	subject journal.Subject
	today   calendar.Day
	out     io.Writer
	buf     []string
}

func (st *state) print(format string, args ...any) {
	fmt.Fprintf(st.out, format, args...)
}

// greet resolves today, pins the day's question, and reports any existing
// entry. An absent question is persisted with the default text so every
// later read of the same day sees the same question.
func (st *state) greet(ctx context.Context) {
	question := prompt.DefaultQuestion
	stored, err := st.svc.store.GetQuestion(ctx, st.subject.ID, st.today)
	switch {
	case err == nil:
		question = stored.Text
	case errors.Is(err, journal.ErrNotFound):
		if err := st.svc.store.UpsertQuestion(ctx, st.subject.ID, st.today, question); err != nil {
			log.Printf("[session] pin default question: %v", err)
		}
	default:
		log.Printf("[session] load question: %v", err)
	}

	st.print("%s\nHello. Your key: %s\n\n", welcome, st.subject.Fingerprint)
	st.print("Today is %s\n", st.today)
	st.print("Question: %s\n\n", question)
	st.print("Type your entry below. End with a line containing only '::save'\n")
	st.print("(or type :edit / :history / :view YYYY-MM-DD / :quit)\n\n")

	// The existing body is a notice only; it is never loaded into the buffer.
	if _, err := st.svc.store.GetEntry(ctx, st.subject.ID, st.today); err == nil {
		st.print("(You already have an entry; :edit to modify or :history to view.)\n")
	}
}

// handle processes one input line. Unrecognized input is journal content in
// both modes, so a subject can start typing without an explicit :edit.
func (st *state) handle(ctx context.Context, line string) {
	switch {
	case line == ":history":
		st.history(ctx)
	case line == ":view" || strings.HasPrefix(line, ":view "):
		st.view(ctx, line)
	case line == ":edit":
		st.edit()
	case line == "::save":
		st.save(ctx)
	default:
		st.buf = append(st.buf, line)
	}
}

// history is available in both modes and leaves the buffer untouched.
func (st *state) history(ctx context.Context) {
	previews, err := st.svc.store.ListRecentEntries(ctx, st.subject.ID, st.svc.historyLimit, st.svc.previewWidth)
	if err != nil {
		log.Printf("[session] list history: %v", err)
		st.print("Storage unavailable, please try again later.\n")
		return
	}
	if len(previews) == 0 {
		st.print("No history yet.\n")
		return
	}

	st.print("\nRecent entries:\n")
	for _, p := range previews {
		st.print("  %s: %s\n", p.Day, p.Preview)
	}
}

func (st *state) view(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		st.print("Usage: :view YYYY-MM-DD\n")
		return
	}
	day, err := calendar.ParseDay(fields[1])
	if err != nil {
		st.print("Usage: :view YYYY-MM-DD\n")
		return
	}

	entry, err := st.svc.store.GetEntry(ctx, st.subject.ID, day)
	if errors.Is(err, journal.ErrNotFound) {
		st.print("No entry for that date.\n")
		return
	}
	if err != nil {
		log.Printf("[session] view entry: %v", err)
		st.print("Storage unavailable, please try again later.\n")
		return
	}

	st.print("\n%s\n%s\n%s\n", separator, day, separator)
	st.print("%s\n", entry.Body)
	st.print("%s\n", separator)
}

// edit clears the buffer even when content is mid-flight. Deliberate: the
// daily entry is freely rewritable and :edit means "start over".
func (st *state) edit() {
	st.buf = nil
	st.print("Editing today. Finish with '::save' on its own line.\n")
}

// save runs the persistence pipeline: entry first, and only after the store
// acknowledges does anything report success. Question generation afterwards
// is best-effort and can never fail the save.
func (st *state) save(ctx context.Context) {
	final := strings.TrimSpace(strings.Join(st.buf, "\n"))
	if final == "" {
		st.print("Nothing to save.\n")
		return
	}

	if err := st.svc.store.UpsertEntry(ctx, st.subject.ID, st.today, final); err != nil {
		log.Printf("[session] save entry: %v", err)
		st.print("Could not save, storage unavailable. Your text is still buffered.\n")
		return
	}
	st.print("Saved.\n")

	tomorrow := st.today.Next()
	question := st.svc.generator.Generate(ctx, final)
	if err := st.svc.store.UpsertQuestion(ctx, st.subject.ID, tomorrow, question); err != nil {
		log.Printf("[session] queue question: %v", err)
		st.print("Could not queue tomorrow's question, storage unavailable.\n")
	} else {
		st.print("Queued tomorrow's question: %s\n", question)
	}

	st.buf = nil
}
