package httpmw

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxKeyToken   ctxKey = "token"
	ctxKeyAddress ctxKey = "address"
)

// Аутентификация кошелька — внешний коллаборатор; здесь требуем только
// Bearer + X-Wallet-Address, без валидации подписи.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing bearer token"}`))
			return
		}

		address := strings.TrimSpace(r.Header.Get("X-Wallet-Address"))
		if address == "" {
			http.Error(w, `{"error":"missing X-Wallet-Address"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyToken, strings.TrimSpace(auth[7:]))
		ctx = context.WithValue(ctx, ctxKeyAddress, address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func AddressFromCtx(ctx context.Context) string {
	if v := ctx.Value(ctxKeyAddress); v != nil {
		if addr, ok := v.(string); ok {
			return addr
		}
	}
	return ""
}
