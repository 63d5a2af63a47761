package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/kyc-consortium/kyc_consortium/internal/config"
	"github.com/kyc-consortium/kyc_consortium/internal/logging"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:        "KYCConsortium",
		AppEnv:         "development",
		Port:           "0",
		JWTSecret:      "test-secret",
		AdminAddress:   "admin",
		AdminSecret:    "admin-secret-1",
		AccessTokenTTL: time.Minute,
	}
	app := fiber.New()
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func issueToken(t *testing.T, app *fiber.App, address, key string) string {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/token", "", fiber.Map{
		"address":    address,
		"access_key": key,
	})
	require.Equal(t, http.StatusOK, status, "token for %s", address)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestConsortiumLifecycle(t *testing.T) {
	app := testApp(t)

	adminToken := issueToken(t, app, "admin", "admin-secret-1")

	// Admin onboards four banks; threshold becomes 4/3 = 1.
	for i := 1; i <= 4; i++ {
		status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/banks", adminToken, fiber.Map{
			"address":    fmt.Sprintf("bank-%d", i),
			"name":       fmt.Sprintf("Bank %d", i),
			"reg_number": fmt.Sprintf("REG-%03d", i),
			"access_key": fmt.Sprintf("bank-key-%d!", i),
		})
		require.Equal(t, http.StatusCreated, status, "add bank %d: %v", i, body)
		require.Equal(t, true, body["eligible"])
	}

	// A bank cannot perform admin operations.
	bank1Token := issueToken(t, app, "bank-1", "bank-key-1!")
	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/banks", bank1Token, fiber.Map{
		"address": "bank-x", "name": "X", "reg_number": "R", "access_key": "whatever1",
	})
	require.Equal(t, http.StatusForbidden, status)

	// bank-1 onboards a customer and files a verification request.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/customers", bank1Token, fiber.Map{
		"username": "alice", "fingerprint": "fp-1",
	})
	require.Equal(t, http.StatusCreated, status)
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/requests", bank1Token, fiber.Map{
		"username": "alice", "fingerprint": "fp-1",
	})
	require.Equal(t, http.StatusCreated, status)

	// One upvote clears the threshold; the customer is approved.
	bank2Token := issueToken(t, app, "bank-2", "bank-key-2!")
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/customers/alice/upvote", bank2Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["approved"])

	// A repeat vote in the same cycle is rejected.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/customers/alice/upvote", bank2Token, nil)
	require.Equal(t, http.StatusConflict, status)

	// A downvote flips approval and suspends the onboarding bank outright.
	bank3Token := issueToken(t, app, "bank-3", "bank-key-3!")
	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/customers/alice/downvote", bank3Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["approved"])
	require.Equal(t, true, body["initiator_suspended"])

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/banks/bank-1", bank3Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["eligible"])

	// The suspended bank can no longer act on the registry.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/customers", bank1Token, fiber.Map{
		"username": "bob", "fingerprint": "fp-2",
	})
	require.Equal(t, http.StatusForbidden, status)

	// The admin reinstates it.
	status, body = doJSON(t, app, fiber.MethodPatch, "/api/v1/banks/bank-1/eligibility", adminToken, fiber.Map{
		"eligible": true,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["eligible"])

	// Peer reporting: first report sticks, duplicate is rejected.
	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/banks/bank-2/reports", bank3Token, nil)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, float64(1), body["complaints"])
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/banks/bank-2/reports", bank3Token, nil)
	require.Equal(t, http.StatusConflict, status)

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/banks/bank-2/complaints", bank1Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), body["complaints"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := testApp(t)

	status, _ := doJSON(t, app, fiber.MethodGet, "/api/v1/banks/bank-1", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/customers", "garbage-token", fiber.Map{
		"username": "alice", "fingerprint": "fp",
	})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestBadTokenRequestRejected(t *testing.T) {
	app := testApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/token", "", fiber.Map{
		"address": "admin", "access_key": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/token", "", fiber.Map{
		"address": "admin",
	})
	require.Equal(t, http.StatusBadRequest, status)
}
