// Package sshd hosts the journaling service over SSH. Any public key is
// accepted (subjects are auto-provisioned on first contact); the key's
// SHA256 fingerprint becomes the stable subject identity handed to the
// session layer.
package sshd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"

	"github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/zhouzirui/daybook/internal/config"
	"github.com/zhouzirui/daybook/internal/service/session"
)

// Server wraps the SSH listener around the session service.
type Server struct {
	srv *ssh.Server
}

// New configures the SSH server. The host key must already exist at the
// configured path (create once: ssh-keygen -t ed25519 -f ./host_ed25519 -N '').
func New(cfg config.ServerConfig, sessions *session.Service) (*Server, error) {
	srv := &ssh.Server{
		Addr: cfg.Addr,
		// Accept every key; identity is derived, not authorized.
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			return true
		},
		Handler: func(s ssh.Session) {
			fingerprint := ""
			if key := s.PublicKey(); key != nil {
				fingerprint = gossh.FingerprintSHA256(key)
			}

			if err := sessions.Run(s.Context(), fingerprint, newChannel(s)); err != nil {
				if !errors.Is(err, session.ErrIdentityRequired) {
					log.Printf("[sshd] session for %s ended with error: %v", fingerprint, err)
				}
				_ = s.Exit(1)
				return
			}
			_ = s.Exit(0)
		},
	}

	if err := srv.SetOption(ssh.HostKeyFile(cfg.HostKeyPath)); err != nil {
		return nil, err
	}

	return &Server{srv: srv}, nil
}

// newChannel picks the line discipline for a connection. Interactive clients
// allocate a PTY, put their local terminal in raw mode, and send
// CR-terminated input with no local echo, so they get a VT100 terminal that
// supplies echo, CR handling, and LF-to-CRLF output conversion. Plain
// streams (ssh -T, piped input) split on newlines.
func newChannel(s ssh.Session) session.LineChannel {
	if _, winCh, isPty := s.Pty(); isPty {
		go func() {
			for range winCh {
				// Window resizes don't affect a line-oriented session; the
				// channel still has to be drained.
			}
		}()
		return newTerminalChannel(s)
	}
	return session.NewScannerChannel(s)
}

func newTerminalChannel(rw io.ReadWriter) session.LineChannel {
	return &terminalChannel{t: term.NewTerminal(rw, "")}
}

type terminalChannel struct {
	t *term.Terminal
}

// Write expands LF to CRLF; the client terminal is in raw mode and renders a
// bare LF as a staircase.
func (c *terminalChannel) Write(p []byte) (int, error) {
	if _, err := c.t.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *terminalChannel) ReadLine() (string, error) {
	return c.t.ReadLine()
}

// ListenAndServe blocks serving SSH connections.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for active sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
