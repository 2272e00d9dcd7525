// Package session превращает токен провайдера идентификации в Identity.
// Identity явно передаётся в каждую операцию ядра — сервисы не ищут
// текущую сессию сами.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Роли из claim "role"
const (
	RoleUser  = "authenticated"
	RoleAdmin = "admin"
)

// Identity — кто вызывает операцию. Нулевое значение = аноним.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// Anonymous — вызов без сессии.
var Anonymous = Identity{}

// IsAnonymous возвращает true, если сессии нет.
func (i Identity) IsAnonymous() bool {
	return i.UserID == uuid.Nil
}

// IsAdmin возвращает true для токенов админки.
func (i Identity) IsAdmin() bool {
	return !i.IsAnonymous() && i.Role == RoleAdmin
}

// Claims — набор claim-ов, который выдаёт провайдер идентификации.
// sub содержит UUID пользователя.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminIssuer — claim iss админских токенов. Такие токены подписываются
// отдельным секретом, которого у провайдера нет.
const AdminIssuer = "tradedesk-admin"

// Accessor проверяет HS256-токены: пользовательские общим секретом
// провайдера, админские своим секретом.
type Accessor struct {
	secret      []byte
	adminSecret []byte
	now         func() time.Time
}

// NewAccessor создаёт Accessor. Пустой adminSecret отключает админские токены.
func NewAccessor(secret, adminSecret string) *Accessor {
	return &Accessor{secret: []byte(secret), adminSecret: []byte(adminSecret), now: time.Now}
}

// Resolve разбирает токен. Пустой токен — не ошибка, а Anonymous.
//
// Роль admin даёт только токен с iss=AdminIssuer, подписанный админским
// секретом. Токен провайдера с role=admin считается пользовательским.
func (a *Accessor) Resolve(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Anonymous, nil
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		if c, ok := t.Claims.(*Claims); ok && c.Issuer == AdminIssuer {
			if len(a.adminSecret) == 0 {
				return nil, errors.New("админские токены отключены")
			}
			return a.adminSecret, nil
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Anonymous, fmt.Errorf("невалидный токен: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Anonymous, errors.New("невалидные claims токена")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Anonymous, fmt.Errorf("sub не является UUID: %w", err)
	}

	role := claims.Role
	switch {
	case claims.Issuer == AdminIssuer:
		role = RoleAdmin
	case role == "", role == RoleAdmin:
		role = RoleUser
	}
	return Identity{UserID: userID, Role: role}, nil
}

// ResolveHeader извлекает токен из заголовка Authorization: Bearer <token>.
func (a *Accessor) ResolveHeader(header string) (Identity, error) {
	if header == "" {
		return Anonymous, nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Anonymous, errors.New("invalid authorization header format")
	}
	return a.Resolve(parts[1])
}

// Issue подписывает токен для identity. Админская роль подписывается
// админским секретом с iss=AdminIssuer, остальные секретом провайдера
// (так токены выпускают тесты).
func (a *Accessor) Issue(id Identity, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	key := a.secret
	if id.Role == RoleAdmin {
		if len(a.adminSecret) == 0 {
			return "", errors.New("админский секрет не задан")
		}
		claims.Issuer = AdminIssuer
		key = a.adminSecret
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

type ctxKey struct{}

// WithIdentity кладёт identity в контекст запроса.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext достаёт identity из контекста. Нет значения — Anonymous.
func FromContext(ctx context.Context) Identity {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok {
		return Anonymous
	}
	return id
}
