package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := fullURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateTwilioSignature(t *testing.T) {
	const token = "12345"
	const public = "https://intake.example.com"

	app := fiber.New()
	app.Post("/webhook/whatsapp", ValidateTwilioSignature(token, public+"/"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	form := url.Values{
		"From":       {"whatsapp:+15551234567"},
		"Body":       {"hello"},
		"MessageSid": {"SM1"},
	}

	post := func(signature string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
		if signature != "" {
			req.Header.Set("X-Twilio-Signature", signature)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, post(sign(token, public+"/webhook/whatsapp", form)))
	assert.Equal(t, fiber.StatusUnauthorized, post(sign("other-token", public+"/webhook/whatsapp", form)))
	assert.Equal(t, fiber.StatusUnauthorized, post(""))
}

func TestRequireAdminToken(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", RequireAdminToken("s3cret"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	get := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, get("Bearer s3cret"))
	assert.Equal(t, fiber.StatusUnauthorized, get("Bearer wrong"))
	assert.Equal(t, fiber.StatusUnauthorized, get("s3cret"))
	assert.Equal(t, fiber.StatusUnauthorized, get(""))

	locked := fiber.New()
	locked.Get("/admin", RequireAdminToken(""), func(c *fiber.Ctx) error { return c.SendString("ok") })
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer ")
	resp, err := locked.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
