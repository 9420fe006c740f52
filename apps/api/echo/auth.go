package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/staff"
)

const contextTokenKey = "actorToken"

// Claims represents the authorization claims transmitted via a JWT.
// Authentication happens upstream; the engine only consumes the resulting
// identity, roles and department.
type Claims struct {
	jwt.StandardClaims
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	DepartmentID string   `json:"department_id,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// GetActorClaims builds the Claims to embed in a token for the given actor.
func GetActorClaims(conf *core.Config, actor staff.Actor) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   actor.ID,
			Audience:  "Academia",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:         actor.Name,
		Email:        actor.Email,
		Roles:        actor.Roles,
		DepartmentID: actor.DepartmentID,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextActor(ctx echo.Context) (staff.Actor, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return staff.Actor{}, err
	}
	return staff.Actor{
		ID:           claims.Subject,
		Name:         claims.Name,
		Email:        claims.Email,
		Roles:        claims.Roles,
		DepartmentID: claims.DepartmentID,
	}, nil
}

func contextHasAnyRolePrefix(ctx echo.Context, prefixes ...string) bool {
	actor, err := getContextActor(ctx)
	if err != nil {
		return false
	}
	for _, prefix := range prefixes {
		if actor.RoleStartsWith(prefix) {
			return true
		}
	}
	return false
}

func adminMiddleware() echo.MiddlewareFunc {
	return rolesRequiredMiddleware(staff.RoleAdmin)
}

func staffMiddleware() echo.MiddlewareFunc {
	return rolesRequiredMiddleware(staff.RoleAdmin, staff.RoleStaff)
}

// rolesRequiredMiddleware passes requests whose actor holds a role starting
// with any of the given prefixes.
func rolesRequiredMiddleware(prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if contextHasAnyRolePrefix(ctx, prefixes...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
