package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "animehub", Duration: time.Hour}
}

func TestIssueAndParse(t *testing.T) {
	ts := testTokens()
	token, claims, err := ts.Issue()
	require.NoError(t, err)

	_, err = uuid.Parse(claims.SessionID)
	require.NoError(t, err)

	parsed, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, claims.SessionID, parsed.SessionID)
	assert.Equal(t, "animehub", parsed.Issuer)
}

func TestParseRejects(t *testing.T) {
	ts := testTokens()
	token, _, err := ts.Issue()
	require.NoError(t, err)

	other := ts
	other.Secret = []byte("another-secret")
	_, err = other.Parse(token)
	assert.Error(t, err, "wrong secret")

	wrongIssuer := ts
	wrongIssuer.Issuer = "someone-else"
	_, err = wrongIssuer.Parse(token)
	assert.Error(t, err, "wrong issuer")

	expired := ts
	expired.Duration = -time.Minute
	old, _, err := expired.Issue()
	require.NoError(t, err)
	_, err = ts.Parse(old)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	notUUID, _, err := ts.Sign("../../etc")
	require.NoError(t, err)
	_, err = ts.Parse(notUUID)
	assert.Error(t, err, "session id must be a uuid")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{SessionID: uuid.NewString()})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Parse(raw)
	assert.Error(t, err, "alg none")
}

func TestSessionRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ts := testTokens()
	r := gin.New()
	NewHandler(ts).RegisterRoutes(r.Group("/session"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Token)
	_, err := time.Parse(time.RFC3339, created.ExpiresAt)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/session/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var refreshed struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	assert.Equal(t, created.SessionID, refreshed.SessionID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/session/refresh", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
