package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"messagely/internal/common"
	"messagely/internal/utils"
)

type contextKey string

const UsernameKey contextKey = "username"

// Username returns the caller identified by EnsureLoggedIn.
func Username(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(UsernameKey).(string)
	return u, ok && u != ""
}

// TokenFromRequest looks for the token in the JSON body field _token, then
// the _token query parameter, then an Authorization: Bearer header. The body
// is restored in full so handlers can decode it again.
func TokenFromRequest(r *http.Request) string {
	if r.Body != nil && r.Body != http.NoBody {
		b, err := io.ReadAll(r.Body)
		r.Body = restoredBody{Reader: io.MultiReader(bytes.NewReader(b), r.Body), Closer: r.Body}
		if err == nil && len(b) > 0 {
			var body struct {
				Token string `json:"_token"`
			}
			if json.Unmarshal(b, &body) == nil && body.Token != "" {
				return body.Token
			}
		}
	}
	if tok := r.URL.Query().Get("_token"); tok != "" {
		return tok
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// restoredBody replays the bytes already consumed, then whatever is left of
// the original body, which it still owns for Close.
type restoredBody struct {
	io.Reader
	io.Closer
}

// EnsureLoggedIn rejects requests without a token signed by secret and
// stores the token's username in the request context.
func EnsureLoggedIn(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := utils.ParseJWT(TokenFromRequest(r), secret)
			if err != nil {
				utils.Error(w, r, common.AuthError("Unauthorized"))
				return
			}

			ctx := context.WithValue(r.Context(), UsernameKey, username)
			log := utils.LoggerFrom(ctx).WithField("user", username)
			next.ServeHTTP(w, r.WithContext(utils.WithLogger(ctx, log)))
		})
	}
}

// EnsureCorrectUser requires the caller to be the {username} in the path.
// It must run after EnsureLoggedIn.
func EnsureCorrectUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := Username(r.Context())
		if !ok || username != chi.URLParam(r, "username") {
			utils.Error(w, r, common.AuthError("Unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
