package admin

import (
	"bytes"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fm3d/analytics"
	"fm3d/assets"
	"fm3d/auth"
	"fm3d/content"
	"fm3d/database"
	"fm3d/models"
	"fm3d/participants"
	"fm3d/storage"
)

type countingClearer struct {
	cleared int
}

func (c *countingClearer) Clear() error {
	c.cleared++
	return nil
}

type testEnv struct {
	db     *gorm.DB
	bucket *storage.MemoryBucket
	tokens *auth.Tokens
	cache  *countingClearer
	router *gin.Engine
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true, Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.RunMigrations(db, zerolog.Nop()))
	return db
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	bucket := storage.NewMemoryBucket("http://files.test")
	assetService := assets.NewService(bucket, time.Hour, zerolog.Nop())
	contentService := content.NewService(db, assetService, nil, content.Limits{
		Cover: assets.ImageLimits(2*assets.MiB, false),
		File:  assets.AnyLimits(2 * assets.MiB),
	}, zerolog.Nop())
	participantService := participants.NewService(db, assetService, nil, assets.ImageLimits(2*assets.MiB, false), zerolog.Nop())
	tokens := auth.NewTokens("test-secret", time.Hour, false)
	stats, err := analytics.NewAnalyticsModule(db, false, zerolog.Nop())
	require.NoError(t, err)
	clearer := &countingClearer{}

	adminModule := NewAdminModule(db, tokens, contentService, participantService, assetService, Options{
		UploadMax:  2 * assets.MiB,
		NewsLimits: assets.ImageLimits(1024, true),
		Analytics:  stats,
		Cache:      clearer,
	}, zerolog.Nop())

	router := gin.New()
	router.Use(sessions.Sessions("fm3d-session", cookie.NewStore([]byte("secret"))))
	router.Use(tokens.Middleware())
	adminModule.RegisterRoutes(router)

	return &testEnv{db: db, bucket: bucket, tokens: tokens, cache: clearer, router: router}
}

// user stores an account with password "lozinka123".
func (e *testEnv) user(t *testing.T, role models.Role) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("lozinka123")
	require.NoError(t, err)
	u := &models.User{Email: uuid.NewString() + "@fm3d.test", Name: "Test " + string(role), Role: role, PasswordHash: hash}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) tokenCookie(t *testing.T, u *models.User) *http.Cookie {
	t.Helper()
	token, err := e.tokens.Issue(*u)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, ck := range cookies {
		if ck != nil {
			req.AddCookie(ck)
		}
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	return e.do(req, cookies...)
}

func (e *testEnv) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, cookies...)
}

func (e *testEnv) postFile(t *testing.T, path, field, filename string, data []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req, cookies...)
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "fm3d-session" {
			return ck
		}
	}
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(4, 4, color.NRGBA{B: 255, A: 255}), imaging.PNG))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, filename string, data []byte, body *bytes.Buffer) *http.Request {
	t.Helper()
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(fileField, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
