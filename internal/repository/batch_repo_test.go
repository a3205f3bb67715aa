package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/educlass-api/internal/models"
)

func setupTestDB(t *testing.T, tables ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(tables...))
	return db
}

func intPointer(v int) *int {
	return &v
}

func TestBatchRepositoryCreateAndList(t *testing.T) {
	db := setupTestDB(t, &models.Batch{}, &models.Enrollment{})
	repo := NewBatchRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	older := models.Batch{ID: "b1", OwnerID: "t1", Name: "Physics Grade 11", Subject: "physics", Grade: "11", InviteCode: "PHY111", CreatedAt: now.Add(-time.Hour)}
	newer := models.Batch{ID: "b2", OwnerID: "t1", Name: "Chemistry Grade 12", Subject: "chemistry", Grade: "12", InviteCode: "CHE122", CreatedAt: now}
	foreign := models.Batch{ID: "b3", OwnerID: "t2", Name: "Biology", Subject: "biology", Grade: "9", InviteCode: "BIO999", CreatedAt: now}
	for _, batch := range []*models.Batch{&older, &newer, &foreign} {
		require.NoError(t, repo.Create(ctx, batch))
	}

	owned, err := repo.ListByOwner(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, "b2", owned[0].ID)
	require.Equal(t, "b1", owned[1].ID)

	found, err := repo.GetByID(ctx, "b3")
	require.NoError(t, err)
	require.Equal(t, "BIO999", found.InviteCode)
	require.Nil(t, found.Capacity)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	byCode, err := repo.GetByInviteCode(ctx, "CHE122")
	require.NoError(t, err)
	require.Equal(t, "b2", byCode.ID)
}

func TestBatchRepositoryEnrollHonoursCapacity(t *testing.T) {
	db := setupTestDB(t, &models.Batch{}, &models.Enrollment{})
	repo := NewBatchRepository(db)
	ctx := context.Background()

	batch := models.Batch{ID: "b1", OwnerID: "t1", Name: "Math", Subject: "mathematics", Grade: "10", InviteCode: "MATH10", Capacity: intPointer(1)}
	require.NoError(t, repo.Create(ctx, &batch))

	enrolled, created, err := repo.Enroll(ctx, "b1", "s1")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 1, enrolled.StudentsCount)

	again, created, err := repo.Enroll(ctx, "b1", "s1")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 1, again.StudentsCount)

	_, _, err = repo.Enroll(ctx, "b1", "s2")
	require.ErrorIs(t, err, ErrBatchFull)

	_, _, err = repo.Enroll(ctx, "missing", "s2")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	list, err := repo.ListEnrolled(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "b1", list[0].ID)

	none, err := repo.ListEnrolled(ctx, "s2")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestBatchRepositoryEnrollUnlimited(t *testing.T) {
	db := setupTestDB(t, &models.Batch{}, &models.Enrollment{})
	repo := NewBatchRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Batch{ID: "open", OwnerID: "t1", Name: "Open", Subject: "english", Grade: "8", InviteCode: "OPEN88"}))
	for i := 0; i < 5; i++ {
		_, created, err := repo.Enroll(ctx, "open", fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		require.True(t, created)
	}

	batch, err := repo.GetByID(ctx, "open")
	require.NoError(t, err)
	require.Equal(t, 5, batch.StudentsCount)
	require.Equal(t, "OPEN88", batch.InviteCode)

	ids, err := repo.ListStudentIDs(ctx, "open")
	require.NoError(t, err)
	require.Equal(t, []string{"s0", "s1", "s2", "s3", "s4"}, ids)
}

func TestSessionChatRepositoryListsChronologically(t *testing.T) {
	db := setupTestDB(t, &models.SessionChatMessage{})
	repo := NewSessionChatRepository(db)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		message := models.SessionChatMessage{
			SessionID:  "b1",
			SenderID:   "t1",
			SenderName: "Sarah Johnson",
			Content:    fmt.Sprintf("message %d", i),
			IsTeacher:  true,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Save(ctx, &message))
	}
	require.NoError(t, repo.Save(ctx, &models.SessionChatMessage{SessionID: "other", Content: "elsewhere"}))

	messages, err := repo.ListBySession(ctx, "b1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "message 1", messages[0].Content)
	require.Equal(t, "message 2", messages[1].Content)
}
