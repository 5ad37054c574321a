package memory

import (
	"context"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// Sessions returns the session-store view of the Store.
func (s *Store) Sessions() port.SessionStore { return &sessionStore{s} }

// ResetTokens returns the reset-token-store view of the Store.
func (s *Store) ResetTokens() port.ResetTokenStore { return &resetTokenStore{s} }

// Invites returns the invite-store view of the Store.
func (s *Store) Invites() port.InviteStore { return &inviteStore{s} }

type sessionStore struct{ s *Store }

func (r *sessionStore) Create(ctx context.Context, session domain.AuthSession) error {
	r.s.sessionMu.Lock()
	defer r.s.sessionMu.Unlock()
	return r.s.createSessionLocked(session)
}

func (r *sessionStore) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	r.s.sessionMu.Lock()
	defer r.s.sessionMu.Unlock()
	return r.s.findSessionByHashLocked(tokenHash)
}

func (r *sessionStore) Revoke(ctx context.Context, input port.RevokeSessionInput) error {
	r.s.sessionMu.Lock()
	defer r.s.sessionMu.Unlock()
	return r.s.revokeSessionLocked(input)
}

func (r *sessionStore) RevokeAllForUser(ctx context.Context, userID, reason string) error {
	r.s.sessionMu.Lock()
	defer r.s.sessionMu.Unlock()
	return r.s.revokeAllSessionsLocked(userID, reason)
}

func (r *sessionStore) IsActive(ctx context.Context, sessionID string) (bool, error) {
	r.s.sessionMu.Lock()
	defer r.s.sessionMu.Unlock()
	session, ok := r.s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	return session.IsActive(r.s.now().UTC()), nil
}

// WithinTx holds the session mutex for the whole closure and restores the
// pre-transaction session state when the closure fails.
func (r *sessionStore) WithinTx(ctx context.Context, fn func(tx port.SessionOps) error) error {
	r.s.sessionMu.Lock()
	defer r.s.sessionMu.Unlock()

	snapshot := cloneSessionMap(r.s.sessions)
	if err := fn(&sessionTx{r.s}); err != nil {
		r.s.sessions = snapshot
		return err
	}
	return nil
}

// sessionTx runs against an already-locked store.
type sessionTx struct{ s *Store }

func (t *sessionTx) Create(ctx context.Context, session domain.AuthSession) error {
	return t.s.createSessionLocked(session)
}

func (t *sessionTx) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	return t.s.findSessionByHashLocked(tokenHash)
}

func (t *sessionTx) Revoke(ctx context.Context, input port.RevokeSessionInput) error {
	return t.s.revokeSessionLocked(input)
}

func (t *sessionTx) RevokeAllForUser(ctx context.Context, userID, reason string) error {
	return t.s.revokeAllSessionsLocked(userID, reason)
}

func (t *sessionTx) IsActive(ctx context.Context, sessionID string) (bool, error) {
	session, ok := t.s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	return session.IsActive(t.s.now().UTC()), nil
}

func (s *Store) createSessionLocked(session domain.AuthSession) error {
	if _, ok := s.sessions[session.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range s.sessions {
		if existing.RefreshTokenHash == session.RefreshTokenHash {
			return repository.ErrConflict
		}
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) findSessionByHashLocked(tokenHash string) (*domain.AuthSession, error) {
	for _, session := range s.sessions {
		if session.RefreshTokenHash == tokenHash {
			sess := session
			return &sess, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) revokeSessionLocked(input port.RevokeSessionInput) error {
	session, ok := s.sessions[input.SessionID]
	if !ok {
		return repository.ErrNotFound
	}
	if session.Revoke(s.now().UTC(), input.Reason, input.ReplacedBySessionID) {
		s.sessions[input.SessionID] = session
	}
	return nil
}

func (s *Store) revokeAllSessionsLocked(userID, reason string) error {
	now := s.now().UTC()
	for id, session := range s.sessions {
		if session.UserID != userID {
			continue
		}
		if session.Revoke(now, reason, nil) {
			s.sessions[id] = session
		}
	}
	return nil
}

type resetTokenStore struct{ s *Store }

func (r *resetTokenStore) Create(ctx context.Context, token domain.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.resetTokens[token.ID]; ok {
		return repository.ErrConflict
	}
	r.s.resetTokens[token.ID] = token
	return nil
}

func (r *resetTokenStore) FindByHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, token := range r.s.resetTokens {
		if token.TokenHash == tokenHash {
			t := token
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *resetTokenStore) MarkUsed(ctx context.Context, tokenID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token, ok := r.s.resetTokens[tokenID]
	if !ok {
		return repository.ErrNotFound
	}
	if token.UsedAt == nil {
		now := r.s.now().UTC()
		token.UsedAt = &now
		r.s.resetTokens[tokenID] = token
	}
	return nil
}

type inviteStore struct{ s *Store }

func (r *inviteStore) FindByCode(ctx context.Context, code string) (*domain.InviteCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.findInviteByCodeLocked(code)
}

// WithinTx holds the core mutex for the whole closure and restores invite
// and user state when the closure fails. Holding the mutex across the invite
// lookup and the uses-count increment is what keeps consumption atomic.
func (r *inviteStore) WithinTx(ctx context.Context, fn func(tx port.InviteOps) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inviteSnapshot := cloneInviteMap(r.s.invites)
	userSnapshot := cloneUserMap(r.s.users)
	if err := fn(&inviteTx{r.s}); err != nil {
		r.s.invites = inviteSnapshot
		r.s.users = userSnapshot
		return err
	}
	return nil
}

// inviteTx runs against an already-locked store.
type inviteTx struct{ s *Store }

func (t *inviteTx) FindByCode(ctx context.Context, code string) (*domain.InviteCode, error) {
	return t.s.findInviteByCodeLocked(code)
}

func (t *inviteTx) Update(ctx context.Context, invite domain.InviteCode) error {
	if _, ok := t.s.invites[invite.ID]; !ok {
		return repository.ErrNotFound
	}
	t.s.invites[invite.ID] = invite
	return nil
}

func (t *inviteTx) CreateUser(ctx context.Context, user domain.User) error {
	return t.s.createUserLocked(user)
}

func (s *Store) findInviteByCodeLocked(code string) (*domain.InviteCode, error) {
	for _, invite := range s.invites {
		if invite.Code == code {
			inv := invite
			return &inv, nil
		}
	}
	return nil, repository.ErrNotFound
}
