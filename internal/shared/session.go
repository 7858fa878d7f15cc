package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager orchestrates cookie based sessions backed by Redis. The
// session payload is the caller's Identity; nothing about the user is cached
// outside the session record, and removing the record ends the session.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session is a persisted login.
type Session struct {
	ID        string    `json:"id"`
	Identity  Identity  `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	if cookieName == "" {
		cookieName = "stockroom_session"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Create persists a new session for ident and sets the cookie.
func (sm *SessionManager) Create(ctx context.Context, w http.ResponseWriter, ident Identity) (Session, error) {
	if ident.UserID == "" {
		return Session{}, errors.New("shared: session requires a user id")
	}
	now := time.Now()
	sess := Session{
		ID:        uuid.NewString(),
		Identity:  ident,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	pipe := sm.client.TxPipeline()
	pipe.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl)
	pipe.SAdd(ctx, sm.userKey(ident.UserID), sess.ID)
	pipe.Expire(ctx, sm.userKey(ident.UserID), sm.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, err
	}
	http.SetCookie(w, sm.cookie(sess.ID, sess.ExpiresAt))
	return sess, nil
}

// Load resolves the session named by the request cookie.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	return sm.Get(ctx, cookie.Value)
}

// Get looks up a session by ID.
func (sm *SessionManager) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNoSession
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Invalidate deletes a single session and expires the cookie.
func (sm *SessionManager) Invalidate(ctx context.Context, w http.ResponseWriter, sess Session) error {
	pipe := sm.client.TxPipeline()
	pipe.Del(ctx, sm.redisKey(sess.ID))
	if sess.Identity.UserID != "" {
		pipe.SRem(ctx, sm.userKey(sess.Identity.UserID), sess.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if w != nil {
		http.SetCookie(w, sm.cookie("", time.Time{}))
	}
	return nil
}

// InvalidateUser ends every session belonging to userID, e.g. after a
// password change or account deactivation.
func (sm *SessionManager) InvalidateUser(ctx context.Context, userID string) (int, error) {
	ids, err := sm.client.SMembers(ctx, sm.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sm.redisKey(id))
	}
	keys = append(keys, sm.userKey(userID))
	removed, err := sm.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	// the user index key is not a session
	return max(int(removed)-1, 0), nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

func (sm *SessionManager) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	return c
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) userKey(userID string) string {
	return "session:user:" + userID
}
