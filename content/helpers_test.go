package content

import (
	"bytes"
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fm3d/assets"
	"fm3d/auth"
	"fm3d/database"
	"fm3d/models"
	"fm3d/storage"
)

type recordingCache struct {
	paths []string
}

func (r *recordingCache) Invalidate(paths ...string) {
	r.paths = append(r.paths, paths...)
}

type fixture struct {
	db      *gorm.DB
	bucket  *storage.MemoryBucket
	cache   *recordingCache
	service *Service
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.RunMigrations(db, zerolog.Nop()))
	return db
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	bucket := storage.NewMemoryBucket("http://files.test")
	cache := &recordingCache{}
	assetService := assets.NewService(bucket, time.Hour, zerolog.Nop())
	service := NewService(db, assetService, cache, Limits{
		Cover: assets.ImageLimits(2*assets.MiB, false),
		File:  assets.AnyLimits(2 * assets.MiB),
	}, zerolog.Nop())
	return &fixture{db: db, bucket: bucket, cache: cache, service: service}
}

func (f *fixture) user(t *testing.T, role models.Role, bio string) auth.Identity {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@fm3d.test", Name: string(role), Role: role, Bio: bio}
	require.NoError(t, f.db.Create(u).Error)
	return auth.Identity{ID: u.ID, Role: role}
}

func (f *fixture) create(t *testing.T, actor auth.Identity, kind models.ContentKind, in Input) *models.ContentItem {
	t.Helper()
	item, err := f.service.Create(context.Background(), actor, kind, in)
	require.NoError(t, err)
	return item
}

func pngUpload(t *testing.T) *assets.Upload {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(8, 8, color.NRGBA{R: 200, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return &assets.Upload{Name: "cover.png", ContentType: "image/png", Data: buf.Bytes()}
}
