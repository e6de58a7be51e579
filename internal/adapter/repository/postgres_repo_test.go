package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github-recommender/internal/common"
	"github-recommender/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB 创建一个模拟的数据库连接
func setupMockDB(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	repo := NewPostgresRepoWithDB(gormDB)
	cleanup := func() {
		db.Close()
	}
	return repo, mock, cleanup
}

func TestPostgresRepo_UpsertRepos(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		repos     []*domain.RepoCache
		setupMock func(sqlmock.Sqlmock)
		verify    func(*testing.T, []*domain.RepoCache, error)
	}{
		{
			name: "成功写入一条快照",
			repos: []*domain.RepoCache{
				{
					RepoID:        123,
					FullName:      "octocat/hello",
					Name:          "hello",
					Stars:         500,
					RepoCreatedAt: now,
					RepoUpdatedAt: now,
				},
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "repo_cache"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
				mock.ExpectCommit()
			},
			verify: func(t *testing.T, saved []*domain.RepoCache, err error) {
				assert.NoError(t, err)
				assert.Equal(t, 1, len(saved))
				assert.False(t, saved[0].FetchedAt.IsZero())
			},
		},
		{
			name: "不合法的快照被跳过不写库",
			repos: []*domain.RepoCache{
				{RepoID: 0, FullName: "no-id"},
				{RepoID: 7, FullName: ""},
			},
			setupMock: func(mock sqlmock.Sqlmock) {},
			verify: func(t *testing.T, saved []*domain.RepoCache, err error) {
				assert.NoError(t, err)
				assert.Empty(t, saved)
			},
		},
		{
			name: "单条失败不影响其余",
			repos: []*domain.RepoCache{
				{RepoID: 1, FullName: "octocat/a", Name: "a"},
				{RepoID: 2, FullName: "octocat/b", Name: "b"},
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "repo_cache"`)).
					WillReturnError(assert.AnError)
				mock.ExpectRollback()
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "repo_cache"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
				mock.ExpectCommit()
			},
			verify: func(t *testing.T, saved []*domain.RepoCache, err error) {
				assert.NoError(t, err)
				assert.Equal(t, 1, len(saved))
				assert.Equal(t, int64(2), saved[0].RepoID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMockDB(t)
			defer cleanup()
			tt.setupMock(mock)

			saved, err := repo.UpsertRepos(context.Background(), tt.repos)
			tt.verify(t, saved, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_GetByRepoIDs(t *testing.T) {
	t.Run("空 ID 列表直接短路", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		repos, err := repo.GetByRepoIDs(context.Background(), nil)
		assert.NoError(t, err)
		assert.Nil(t, repos)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("按 ID 查询", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		rows := sqlmock.NewRows([]string{"id", "repo_id", "full_name", "stars"}).
			AddRow(1, 123, "octocat/hello", 500)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "repo_cache"`)).
			WillReturnRows(rows)

		repos, err := repo.GetByRepoIDs(context.Background(), []int64{123})
		assert.NoError(t, err)
		assert.Equal(t, 1, len(repos))
		assert.Equal(t, "octocat/hello", repos[0].FullName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_GetUser(t *testing.T) {
	t.Run("用户不存在返回 NOT_FOUND", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		user, err := repo.GetUser(context.Background(), 42)
		assert.Nil(t, user)
		assert.Error(t, err)

		var appErr *common.AppError
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, common.ErrCodeNotFound, appErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("正常返回用户", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		rows := sqlmock.NewRows([]string{"id", "email", "username"}).
			AddRow(42, "dev@example.com", "dev")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
			WillReturnRows(rows)

		user, err := repo.GetUser(context.Background(), 42)
		assert.NoError(t, err)
		assert.Equal(t, "dev", user.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_ListEnabledPreferences(t *testing.T) {
	t.Run("指定配置 ID 时带上过滤条件", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		rows := sqlmock.NewRows([]string{"id", "user_id", "enabled", "name"}).
			AddRow(3, 42, true, "Go 周报")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "preferences"`)).
			WithArgs(42, true, 3).
			WillReturnRows(rows)

		prefs, err := repo.ListEnabledPreferences(context.Background(), 42, 3)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(prefs))
		assert.Equal(t, "Go 周报", prefs[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("配置 ID 为 0 时返回全部启用配置", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		rows := sqlmock.NewRows([]string{"id", "user_id", "enabled"}).
			AddRow(1, 42, true).
			AddRow(2, 42, true)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "preferences"`)).
			WithArgs(42, true).
			WillReturnRows(rows)

		prefs, err := repo.ListEnabledPreferences(context.Background(), 42, 0)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(prefs))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_SavePreference(t *testing.T) {
	t.Run("不合法的配置直接拒绝", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		pref := &domain.Preference{MinStars: -1}
		err := repo.SavePreference(context.Background(), pref)
		assert.Error(t, err)

		var appErr *common.AppError
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, common.ErrCodeInvalidInput, appErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_MarkSent(t *testing.T) {
	t.Run("空列表短路", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		err := repo.MarkSent(context.Background(), nil, []string{"email"}, time.Now())
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("批量盖章", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "recommendations"`)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.MarkSent(context.Background(), []uint{1, 2}, []string{"email", "telegram"}, time.Now())
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_CleanupReposOlderThan(t *testing.T) {
	repo, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "repo_cache"`)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	deleted, err := repo.CleanupReposOlderThan(context.Background(), time.Now().AddDate(0, 0, -7))
	assert.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_JobRunLifecycle(t *testing.T) {
	t.Run("任务记录不存在返回 NOT_FOUND", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "job_runs"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		run, err := repo.GetJobRun(context.Background(), 99)
		assert.Nil(t, run)

		var appErr *common.AppError
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, common.ErrCodeNotFound, appErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("创建任务记录", func(t *testing.T) {
		repo, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "job_runs"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectCommit()

		run := &domain.JobRun{
			UserID:      42,
			Status:      domain.JobStatusQueued,
			TriggerType: domain.TriggerManual,
		}
		err := repo.CreateJobRun(context.Background(), run)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
