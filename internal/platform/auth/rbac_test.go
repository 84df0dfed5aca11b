package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func doRequest(t *testing.T, actor Actor, mw echo.MiddlewareFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if !actor.IsZero() {
		req = req.WithContext(WithActor(req.Context(), actor))
	}
	c := e.NewContext(req, httptest.NewRecorder())

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return handler(c)
}

func TestRequireRole_Allows(t *testing.T) {
	err := doRequest(t, Actor{Username: "tech1", Role: RoleLab}, RequireRole(RoleLab))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_NoActor(t *testing.T) {
	err := doRequest(t, Actor{}, RequireRole(RoleLab))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestRequireRole_WrongRole(t *testing.T) {
	err := doRequest(t, Actor{Username: "recep1", Role: RoleReception}, RequireRole(RoleDoctor))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRequireRole_AdminBypasses(t *testing.T) {
	err := doRequest(t, Actor{Username: "admin1", Role: RoleAdmin}, RequireRole(RoleDoctor))
	if err != nil {
		t.Fatalf("expected ADMIN to pass, got %v", err)
	}
}
