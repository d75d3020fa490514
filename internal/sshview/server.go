// Package sshview is botty's optional, read-mostly SSH front end: a tab
// multiplexer over every live agent's Screen, for a remote operator who
// wants to watch (not drive) a fleet without opening N attach sessions.
// It is not the Attach bridge — it never writes to a PTY master.
package sshview

import (
	"context"
	"io"
	"net"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pty.systems/botty/core"
	"pty.systems/botty/internal/eventbus"
	"pty.systems/botty/internal/logx"
	"pkt.systems/pslog"
)

// Server exposes a read-only agent viewer over SSH.
type Server struct {
	Addr        string
	HostKeyPath string
	Listener    net.Listener
	Registry    *core.Registry
	Bus         *eventbus.Bus
	logger      pslog.Logger
}

// ListenAndServe starts the SSH viewer and shuts down on context cancellation.
// There is no login: the socket's own 0600 permission is botty's real access
// control, so this front end trusts any client that can reach the port and
// simply logs the offered key fingerprint for the audit trail.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger = pslog.Ctx(ctx)

	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	fingerprint := ssh.FingerprintSHA256(key)
	s.logger.With("remote", remoteAddr(ctx), "fingerprint", fingerprint).Info("viewer pubkey offered")
	return true
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger.With("remote", sess.RemoteAddr().String())
	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("viewer session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		return
	}

	log.Info("viewer session opened", "term", pty.Term)
	ctx := logx.ContextWithAgentLogger(sess.Context(), log, "")
	v := newViewerSession(sess, s.Registry, s.Bus, log)
	v.SetSize(pty.Window.Width, pty.Window.Height)
	_ = v.Run(ctx, winCh)
	log.Info("viewer session closed", "term", pty.Term)
}
