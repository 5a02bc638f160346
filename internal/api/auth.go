package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/playout-core/internal/infrastructure/config"
)

const (
	ticketTTL = time.Minute

	// defaultTokenTTL applies when security.jwt.access_token_ttl is unset.
	defaultTokenTTL = 15 * time.Minute
)

// IssueToken signs an HS256 access token for subject. Tokens are minted by
// operators through the CLI; the server only validates them.
func IssueToken(cfg config.JWTConfig, subject string, now time.Time) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	ttl := time.Duration(cfg.AccessTokenTTL) * time.Minute
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates an access token and returns its subject.
func ParseToken(cfg config.JWTConfig, raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// maxPendingTickets caps unredeemed tickets so a looping client cannot
// grow the store without bound.
const maxPendingTickets = 1024

// ticketStore keeps WebSocket tickets: short-lived, single-use stand-ins
// for a bearer token, which browsers cannot send on an upgrade request.
type ticketStore struct {
	mu      sync.Mutex
	pending map[string]ticketEntry
}

type ticketEntry struct {
	subject   string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{pending: make(map[string]ticketEntry)}
}

// issue returns "" when the store is full of live tickets.
func (ts *ticketStore) issue(subject string, now time.Time) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if len(ts.pending) >= maxPendingTickets {
		ts.cleanLocked(now)
		if len(ts.pending) >= maxPendingTickets {
			return ""
		}
	}
	ticket := uuid.NewString()
	ts.pending[ticket] = ticketEntry{subject: subject, expiresAt: now.Add(ticketTTL)}
	return ticket
}

// consume redeems ticket. A ticket is gone after the first attempt,
// expired or not.
func (ts *ticketStore) consume(ticket string, now time.Time) (ticketEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.pending[ticket]
	delete(ts.pending, ticket)
	return entry, ok && now.Before(entry.expiresAt)
}

func (ts *ticketStore) clean(now time.Time) {
	ts.mu.Lock()
	ts.cleanLocked(now)
	ts.mu.Unlock()
}

func (ts *ticketStore) cleanLocked(now time.Time) {
	for ticket, entry := range ts.pending {
		if !now.Before(entry.expiresAt) {
			delete(ts.pending, ticket)
		}
	}
}

// handleWSTicket trades the caller's bearer token for a ticket to pass as
// ?ticket= on the WebSocket URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	subject, _ := r.Context().Value(ctxKeySubject).(string)
	ticket := s.tickets.issue(subject, time.Now())
	if ticket == "" {
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many unredeemed websocket tickets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

func (s *Server) cleanTicketsLoop(ctx context.Context) {
	t := time.NewTicker(ticketTTL)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.tickets.clean(now)
		}
	}
}
