package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRequireAdmin(t *testing.T) {
	logger := zap.NewNop()
	chain := AuthMiddleware(testSecret, logger)(RequireAdmin(logger)(okHandler()))

	admin, _ := newToken(testSecret, "alice", AdminRole, time.Hour)
	viewer, _ := newToken(testSecret, "bob", "viewer", time.Hour)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"admin passes", admin, http.StatusOK},
		{"other roles are forbidden", viewer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/products/x", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()

			chain.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireRole_WithoutAuthenticationIsForbidden(t *testing.T) {
	handler := RequireRole([]string{"editor", AdminRole}, zap.NewNop())(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/products", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
