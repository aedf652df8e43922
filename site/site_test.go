package site

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
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

const bio = "Volim 3D štampu i modelovanje."

type testEnv struct {
	db     *gorm.DB
	tokens *auth.Tokens
	router *gin.Engine
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true, Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.RunMigrations(db, zerolog.Nop()))

	assetService := assets.NewService(storage.NewMemoryBucket("http://files.test"), time.Hour, zerolog.Nop())
	contentService := content.NewService(db, assetService, nil, content.Limits{
		Cover: assets.ImageLimits(assets.MiB, false),
		File:  assets.AnyLimits(assets.MiB),
	}, zerolog.Nop())
	participantService := participants.NewService(db, assetService, nil, assets.ImageLimits(assets.MiB, false), zerolog.Nop())
	stats, err := analytics.NewAnalyticsModule(db, false, zerolog.Nop())
	require.NoError(t, err)
	tokens := auth.NewTokens("test-secret", time.Hour, false)

	router := gin.New()
	router.Use(sessions.Sessions("fm3d-session", cookie.NewStore([]byte("secret"))))
	router.Use(tokens.Middleware())
	NewSiteModule(contentService, participantService, stats, "https://fm3d.test", zerolog.Nop()).RegisterRoutes(router)

	return &testEnv{db: db, tokens: tokens, router: router}
}

func (e *testEnv) user(t *testing.T, role models.Role, name, bio string) *models.User {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@fm3d.test", Name: name, Role: role, Bio: bio}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) item(t *testing.T, kind models.ContentKind, slug, body string, published bool, author *models.User) *models.ContentItem {
	t.Helper()
	it := &models.ContentItem{Kind: kind, Slug: slug, Title: strings.ToUpper(slug), Body: body, Published: published}
	if author != nil {
		it.AuthorID = &author.ID
	}
	require.NoError(t, e.db.Create(it).Error)
	return it
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		if ck != nil {
			req.AddCookie(ck)
		}
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) signedIn(t *testing.T, u *models.User) *http.Cookie {
	t.Helper()
	token, err := e.tokens.Issue(*u)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestListNews_HidesDrafts(t *testing.T) {
	env := setupEnv(t)
	env.item(t, models.KindPost, "objavljeno", "", true, nil)
	env.item(t, models.KindPost, "nacrt", "", false, nil)
	env.item(t, models.KindWork, "rad", "", true, nil)

	w := env.get("/api/vesti")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []struct {
			Slug     string `json:"slug"`
			CoverSrc string `json:"cover_src"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "objavljeno", body.Items[0].Slug)
	assert.Equal(t, assets.DefaultPlaceholder, body.Items[0].CoverSrc)
	assert.NotContains(t, w.Body.String(), `"flash"`)
}

func TestShowNews(t *testing.T) {
	env := setupEnv(t)
	env.item(t, models.KindPost, "dan-skole", "# Dan škole\n\nPoseta na www.fm3d.rs <script>alert(1)</script>", true, nil)
	env.item(t, models.KindPost, "nacrt", "", false, nil)

	w := env.get("/api/vesti/dan-skole")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Item struct {
			Slug string `json:"slug"`
			HTML string `json:"html"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "dan-skole", body.Item.Slug)
	assert.Contains(t, body.Item.HTML, "<h1>Dan škole</h1>")
	assert.Contains(t, body.Item.HTML, `<a href="http://www.fm3d.rs">`)
	assert.NotContains(t, body.Item.HTML, "<script>")

	assert.Equal(t, http.StatusNotFound, env.get("/api/vesti/nacrt").Code)
	assert.Equal(t, http.StatusNotFound, env.get("/api/vesti/nepostoji").Code)
	// a work slug is not a news slug
	env.item(t, models.KindWork, "most", "", true, nil)
	assert.Equal(t, http.StatusNotFound, env.get("/api/vesti/most").Code)
}

func TestShowWork_BadgesAndKinds(t *testing.T) {
	env := setupEnv(t)
	author := env.user(t, models.RoleStudent, "Ana", bio)
	giver := env.user(t, models.RoleParent, "Roditelj", bio)
	work := env.item(t, models.KindWork, "most", "", true, author)
	require.NoError(t, env.db.Create(&models.BadgeAward{ContentItemID: work.ID, GiverID: giver.ID, Badge: models.BadgeCraft}).Error)

	w := env.get("/api/radovi/most")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Item struct {
			AuthorName string `json:"author_name"`
		} `json:"item"`
		Badges []content.BadgeCount `json:"badges"`
		Kinds  map[string]string    `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Ana", body.Item.AuthorName)
	require.Len(t, body.Badges, 1)
	assert.Equal(t, models.BadgeCraft, body.Badges[0].Badge)
	assert.Equal(t, int64(1), body.Badges[0].Count)
	assert.Len(t, body.Kinds, len(models.BadgeLabels))

	env.item(t, models.KindWork, "skica", "", true, author)
	w = env.get("/api/radovi/skica")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w)["badges"]))
}

func TestPeople_PublicViewsHideEmail(t *testing.T) {
	env := setupEnv(t)
	ana := env.user(t, models.RoleStudent, "Ana", "**Volim** da crtam u 3D.")
	admin := env.user(t, models.RoleSuperadmin, "Admin", "")
	env.item(t, models.KindWork, "most", "", true, ana)
	env.item(t, models.KindWork, "skica", "", false, ana)

	w := env.get("/api/ucesnici")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Participants []struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Participants, 1)
	assert.Equal(t, ana.ID, list.Participants[0].ID)
	assert.Empty(t, list.Participants[0].Email)

	w = env.get("/api/ucesnici/" + ana.ID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), ana.Email)
	var person struct {
		BioHTML string `json:"bio_html"`
		Works   []struct {
			Slug string `json:"slug"`
		} `json:"works"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &person))
	assert.Contains(t, person.BioHTML, "<strong>Volim</strong>")
	require.Len(t, person.Works, 1)
	assert.Equal(t, "most", person.Works[0].Slug)

	assert.Equal(t, http.StatusNotFound, env.get("/api/ucesnici/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusNotFound, env.get("/api/ucesnici/"+admin.ID).Code)
}

func TestPages_TrackVisitsAndCarryViewer(t *testing.T) {
	env := setupEnv(t)
	student := env.user(t, models.RoleStudent, "Ana", bio)
	work := env.item(t, models.KindWork, "most", "", true, nil)

	w := env.get("/radovi/most", env.signedIn(t, student))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "flash")
	var viewer auth.Identity
	require.NoError(t, json.Unmarshal(body["viewer"], &viewer))
	assert.Equal(t, student.ID, viewer.ID)

	// the api twin is pure data and is not counted
	env.get("/api/radovi/most")

	var visits []analytics.Visit
	require.NoError(t, env.db.Find(&visits).Error)
	require.Len(t, visits, 1)
	assert.Equal(t, "/radovi/most", visits[0].Path)
	require.NotNil(t, visits[0].ContentItemID)
	assert.Equal(t, work.ID, *visits[0].ContentItemID)
}

func TestIndex_LatestNews(t *testing.T) {
	env := setupEnv(t)
	for _, slug := range []string{"a", "b", "c", "d"} {
		env.item(t, models.KindPost, slug, "", true, nil)
	}

	w := env.get("/")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		News []interface{} `json:"news"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.News, homeNews)
}

func TestAwardBadge(t *testing.T) {
	env := setupEnv(t)
	author := env.user(t, models.RoleStudent, "Ana", bio)
	giver := env.user(t, models.RoleParent, "Roditelj", bio)
	noBio := env.user(t, models.RoleStudent, "Novi", "")
	env.item(t, models.KindWork, "most", "", true, author)

	post := func(form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req, _ := http.NewRequest(http.MethodPost, "/radovi/most/bedz", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	t.Run("anonymous goes to login", func(t *testing.T) {
		w := post(url.Values{"badge": {"CRAFT"}})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login?callbackUrl=%2Fradovi%2Fmost", w.Header().Get("Location"))
	})

	t.Run("awarded", func(t *testing.T) {
		w := post(url.Values{"badge": {"CRAFT"}, "note": {"Odlično!"}}, env.signedIn(t, giver))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/radovi/most", w.Header().Get("Location"))

		var sess *http.Cookie
		for _, ck := range w.Result().Cookies() {
			if ck.Name == "fm3d-session" {
				sess = ck
			}
		}
		require.NotNil(t, sess)
		page := env.get("/radovi/most", sess)
		var body struct {
			Flash struct {
				Notice string `json:"notice"`
			} `json:"flash"`
		}
		require.NoError(t, json.Unmarshal(page.Body.Bytes(), &body))
		assert.Equal(t, "Bedž je dodeljen.", body.Flash.Notice)
	})

	t.Run("own work refused", func(t *testing.T) {
		w := post(url.Values{"badge": {"CRAFT"}}, env.signedIn(t, author))
		assert.Equal(t, "/radovi/most", w.Header().Get("Location"))
	})

	t.Run("missing bio refused", func(t *testing.T) {
		w := post(url.Values{"badge": {"CRAFT"}}, env.signedIn(t, noBio))
		assert.Equal(t, "/radovi/most", w.Header().Get("Location"))
	})

	var n int64
	env.db.Model(&models.BadgeAward{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestSitemap(t *testing.T) {
	env := setupEnv(t)
	ana := env.user(t, models.RoleStudent, "Ana", bio)
	env.item(t, models.KindPost, "dan-skole", "", true, nil)
	env.item(t, models.KindWork, "most", "", true, ana)
	env.item(t, models.KindWork, "skica", "", false, ana)

	w := env.get("/sitemap.xml")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))
	xml := w.Body.String()
	assert.Contains(t, xml, "<loc>https://fm3d.test/</loc>")
	assert.Contains(t, xml, "<loc>https://fm3d.test/vesti/dan-skole</loc>")
	assert.Contains(t, xml, "<loc>https://fm3d.test/radovi/most</loc>")
	assert.Contains(t, xml, "<loc>https://fm3d.test/ucesnici/"+ana.ID+"</loc>")
	assert.NotContains(t, xml, "skica")
}

func TestRenderMarkdown(t *testing.T) {
	assert.Equal(t, "", string(renderMarkdown("")))
	html := string(renderMarkdown("| a | b |\n|---|---|\n| 1 | 2 |"))
	assert.Contains(t, html, "<table>")
}
