package profile

import (
	"bytes"
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fm3d/apperr"
	"fm3d/assets"
	"fm3d/auth"
	"fm3d/database"
	"fm3d/models"
	"fm3d/storage"
)

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

func setupService(t *testing.T) (*Service, *gorm.DB, *storage.MemoryBucket) {
	t.Helper()
	db := setupTestDB(t)
	bucket := storage.NewMemoryBucket("http://files.test")
	s := NewService(db, assets.NewService(bucket, time.Hour, zerolog.Nop()), nil, assets.ImageLimits(5*assets.MiB, false), zerolog.Nop())
	return s, db, bucket
}

func createUser(t *testing.T, db *gorm.DB, password string) auth.Identity {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Email: "ana@fm3d.test", Name: "Ana", Role: models.RoleStudent, PasswordHash: hash}
	require.NoError(t, db.Create(u).Error)
	return auth.Identity{ID: u.ID, Role: u.Role}
}

func jpegUpload(t *testing.T, w, h int) *assets.Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{B: 200, A: 255}), imaging.JPEG))
	return &assets.Upload{Name: "me.jpg", ContentType: "image/jpeg", Data: buf.Bytes()}
}

func TestWriteJournal_UpsertsPerDay(t *testing.T) {
	s, db, _ := setupService(t)
	ctx := context.Background()
	me := createUser(t, db, "lozinka123")

	_, err := s.WriteJournal(ctx, me, "2024-03-01", "Prvi pokušaj štampe.")
	require.NoError(t, err)
	_, err = s.WriteJournal(ctx, me, "2024-03-01", "Drugi pokušaj, uspešno!")
	require.NoError(t, err)

	entries, err := s.Journal(ctx, me)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-03-01", entries[0].Day)
	assert.Equal(t, "Drugi pokušaj, uspešno!", entries[0].Text)
}

func TestWriteJournal_DefaultsToTodayUTC(t *testing.T) {
	s, db, _ := setupService(t)
	s.now = func() time.Time { return time.Date(2024, 5, 6, 23, 30, 0, 0, time.FixedZone("CEST", -2*3600)) }
	me := createUser(t, db, "lozinka123")

	entry, err := s.WriteJournal(context.Background(), me, "", "Radila sam na modelu.")
	require.NoError(t, err)

	assert.Equal(t, "2024-05-07", entry.Day)
}

func TestWriteJournal_Validation(t *testing.T) {
	s, db, _ := setupService(t)
	ctx := context.Background()
	me := createUser(t, db, "lozinka123")

	_, err := s.WriteJournal(ctx, me, "", "kratko")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.WriteJournal(ctx, me, "01.03.2024", "Dovoljno dug tekst.")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.WriteJournal(ctx, auth.Identity{}, "", "Dovoljno dug tekst.")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestJournal_NewestFirst(t *testing.T) {
	s, db, _ := setupService(t)
	ctx := context.Background()
	me := createUser(t, db, "lozinka123")
	for _, day := range []string{"2024-01-02", "2024-01-05", "2024-01-03"} {
		_, err := s.WriteJournal(ctx, me, day, "Unos za "+day)
		require.NoError(t, err)
	}

	entries, err := s.Journal(ctx, me)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2024-01-05", entries[0].Day)
	assert.Equal(t, "2024-01-02", entries[2].Day)
}

func TestSaveProfile_ResizesAndReplacesAvatar(t *testing.T) {
	s, db, bucket := setupService(t)
	ctx := context.Background()
	me := createUser(t, db, "lozinka123")

	first, err := s.SaveProfile(ctx, me, "  Volim robotiku i 3D.  ", jpegUpload(t, 1200, 600))
	require.NoError(t, err)
	assert.Equal(t, "Volim robotiku i 3D.", first.Bio)
	data, _, ok := bucket.Object(first.Avatar.Path)
	require.True(t, ok)
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())

	oldKey := first.Avatar.Path
	second, err := s.SaveProfile(ctx, me, first.Bio, jpegUpload(t, 100, 100))
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, second.Avatar.Path)
	assert.False(t, bucket.Has(oldKey))
	assert.Equal(t, 1, bucket.Len())
}

func TestSaveProfile_BioOnlyKeepsAvatar(t *testing.T) {
	s, db, bucket := setupService(t)
	ctx := context.Background()
	me := createUser(t, db, "lozinka123")
	first, err := s.SaveProfile(ctx, me, "", jpegUpload(t, 50, 50))
	require.NoError(t, err)

	second, err := s.SaveProfile(ctx, me, "Nova biografija.", nil)
	require.NoError(t, err)

	assert.Equal(t, first.Avatar.Path, second.Avatar.Path)
	assert.True(t, bucket.Has(first.Avatar.Path))
}

func TestChangePassword(t *testing.T) {
	s, db, _ := setupService(t)
	ctx := context.Background()
	me := createUser(t, db, "staralozinka")

	err := s.ChangePassword(ctx, me, "staralozinka", "kratka", "kratka")
	assert.Equal(t, "Nova šifra mora imati min 8 karaktera.", apperr.Message(err))

	err = s.ChangePassword(ctx, me, "staralozinka", "novalozinka", "drugalozinka")
	assert.Equal(t, "Nove šifre se ne poklapaju.", apperr.Message(err))

	err = s.ChangePassword(ctx, me, "pogresna", "novalozinka", "novalozinka")
	assert.Equal(t, "Stara šifra nije tačna.", apperr.Message(err))

	require.NoError(t, s.ChangePassword(ctx, me, "staralozinka", "novalozinka", "novalozinka"))
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", me.ID).Error)
	assert.True(t, auth.CheckPasswordHash("novalozinka", u.PasswordHash))
}

func TestCanSubmitWork(t *testing.T) {
	s, _, _ := setupService(t)
	assert.False(t, s.CanSubmitWork(models.User{Role: models.RoleStudent, Bio: "kratko"}))
	assert.True(t, s.CanSubmitWork(models.User{Role: models.RoleStudent, Bio: "Dovoljno duga biografija"}))
	assert.True(t, s.CanSubmitWork(models.User{Role: models.RoleSuperadmin}))
}
