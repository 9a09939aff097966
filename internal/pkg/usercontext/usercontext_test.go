package usercontext

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func fetchContext(t *testing.T, app *fiber.App, path string) UserContext {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var uc UserContext
	if err := json.Unmarshal(body, &uc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return uc
}

func TestGetUserContext(t *testing.T) {
	app := fiber.New()
	app.Get("/anonymous", func(c *fiber.Ctx) error {
		return c.JSON(GetUserContext(c))
	})
	app.Get("/authenticated", func(c *fiber.Ctx) error {
		c.Locals(ContextKey, UserContext{UserID: 42, Username: "jo", IsLoggedIn: true, Plan: "pro"})
		return c.JSON(GetUserContext(c))
	})

	anon := fetchContext(t, app, "/anonymous")
	if anon.IsLoggedIn || anon.UserID != 0 {
		t.Fatalf("expected anonymous context, got %+v", anon)
	}

	auth := fetchContext(t, app, "/authenticated")
	if !auth.IsLoggedIn || auth.UserID != 42 || auth.Plan != "pro" {
		t.Fatalf("expected authenticated context, got %+v", auth)
	}
}

func TestGetUserContext_WrongTypeFallsBackToAnonymous(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals(ContextKey, "not-a-user-context")
		return c.JSON(GetUserContext(c))
	})

	uc := fetchContext(t, app, "/")
	if uc.IsLoggedIn {
		t.Fatalf("expected anonymous fallback, got %+v", uc)
	}
}
