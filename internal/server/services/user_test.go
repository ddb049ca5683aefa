package services

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/dbx"
	"github.com/dmitrijs2005/cutout/internal/server/auth"
	"github.com/dmitrijs2005/cutout/internal/server/config"
	"github.com/dmitrijs2005/cutout/internal/server/models"
	"github.com/dmitrijs2005/cutout/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/cutout/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeUsersRepo struct {
	createErrs []error
	createKeys []string

	getOut *models.User
	getErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.createKeys = append(f.createKeys, u.APIKey)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	u.ID = int64(len(f.createKeys))
	return u, nil
}

func (f *fakeUsersRepo) lookup() (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) GetByEmail(context.Context, string) (*models.User, error) { return f.lookup() }
func (f *fakeUsersRepo) GetByID(context.Context, int64) (*models.User, error)     { return f.lookup() }
func (f *fakeUsersRepo) GetByAPIKey(context.Context, string) (*models.User, error) {
	return f.lookup()
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }

func testConfig() *config.Config {
	return &config.Config{SecretKey: "k", SessionTokenValidityDuration: time.Hour}
}

func newUserService(t *testing.T, rm repomanager.RepositoryManager) *UserService {
	t.Helper()
	return NewUserService(nil, rm, testConfig())
}

// openStore returns a migrated in-memory SQLite store.
func openStore(t *testing.T) (*sql.DB, repomanager.RepositoryManager) {
	t.Helper()
	db, m, err := repomanager.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, m
}

// --- Register ---

func TestRegister_Validation(t *testing.T) {
	s := newUserService(t, &fakeRepoManager{u: &fakeUsersRepo{}})

	for _, tc := range []struct{ email, password string }{
		{"", "pw"}, {"a@b", ""}, {"  ", "pw"},
	} {
		_, err := s.Register(context.Background(), tc.email, tc.password)
		assert.ErrorIs(t, err, common.ErrorValidation, "%q/%q", tc.email, tc.password)
	}
}

func TestRegister_BlankPasswordIsAPassword(t *testing.T) {
	repo := &fakeUsersRepo{}
	s := newUserService(t, &fakeRepoManager{u: repo})

	u, err := s.Register(context.Background(), "a@b", "   ")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "   "))
}

func TestRegister_HashesPasswordAndIssuesKey(t *testing.T) {
	repo := &fakeUsersRepo{}
	s := newUserService(t, &fakeRepoManager{u: repo})

	u, err := s.Register(context.Background(), "ann@example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, "ann@example.com", u.Email)
	assert.Len(t, u.APIKey, 40)
	assert.NotEqual(t, "pw", u.PasswordHash)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "pw"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &fakeUsersRepo{createErrs: []error{common.ErrorAlreadyExists}}
	s := newUserService(t, &fakeRepoManager{u: repo})

	_, err := s.Register(context.Background(), "a@b", "pw")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_RetriesAPIKeyCollision(t *testing.T) {
	repo := &fakeUsersRepo{createErrs: []error{usersrepo.ErrAPIKeyTaken, nil}}
	s := newUserService(t, &fakeRepoManager{u: repo})

	u, err := s.Register(context.Background(), "a@b", "pw")
	require.NoError(t, err)
	require.Len(t, repo.createKeys, 2)
	assert.NotEqual(t, repo.createKeys[0], repo.createKeys[1])
	assert.Equal(t, repo.createKeys[1], u.APIKey)
}

func TestRegister_GivesUpAfterRepeatedCollisions(t *testing.T) {
	taken := usersrepo.ErrAPIKeyTaken
	repo := &fakeUsersRepo{createErrs: []error{taken, taken, taken, taken}}
	s := newUserService(t, &fakeRepoManager{u: repo})

	_, err := s.Register(context.Background(), "a@b", "pw")
	assert.ErrorIs(t, err, taken)
	assert.Len(t, repo.createKeys, apiKeyAttempts)
}

func TestRegister_DBError(t *testing.T) {
	repo := &fakeUsersRepo{createErrs: []error{errBoom{}}}
	s := newUserService(t, &fakeRepoManager{u: repo})

	_, err := s.Register(context.Background(), "a@b", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error creating user: boom")
}

// --- Login ---

func TestLogin_Flows(t *testing.T) {
	hash, err := auth.HashPassword("right")
	require.NoError(t, err)
	stored := &models.User{ID: 7, Email: "a@b", PasswordHash: hash}

	tests := []struct {
		name     string
		repo     *fakeUsersRepo
		password string
		wantErr  error
	}{
		{"success", &fakeUsersRepo{getOut: stored}, "right", nil},
		{"wrong password", &fakeUsersRepo{getOut: stored}, "wrong", common.ErrorUnauthorized},
		{"unknown email", &fakeUsersRepo{getErr: common.ErrorNotFound}, "right", common.ErrorUnauthorized},
		{"store failure", &fakeUsersRepo{getErr: errBoom{}}, "right", common.ErrorInternal},
		{"empty password", &fakeUsersRepo{getOut: stored}, "", common.ErrorValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newUserService(t, &fakeRepoManager{u: tt.repo})

			token, err := s.Login(context.Background(), "a@b", tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)

			id, err := s.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, Identity{UserID: 7, Email: "a@b"}, id)
		})
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	hash, err := auth.HashPassword("right")
	require.NoError(t, err)

	unknown := newUserService(t, &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}})
	wrong := newUserService(t, &fakeRepoManager{u: &fakeUsersRepo{getOut: &models.User{PasswordHash: hash}}})

	_, errUnknown := unknown.Login(context.Background(), "ghost@b", "x")
	_, errWrong := wrong.Login(context.Background(), "a@b", "x")

	assert.Equal(t, errUnknown, errWrong)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

// --- Verify ---

func TestVerify(t *testing.T) {
	s := newUserService(t, &fakeRepoManager{u: &fakeUsersRepo{}})
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	token, err := auth.GenerateToken(3, "c@d", []byte("k"), time.Hour, start)
	require.NoError(t, err)

	_, err = s.Verify("")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Verify("garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	s.now = func() time.Time { return start.Add(59 * time.Minute) }
	id, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id.UserID)

	s.now = func() time.Time { return start.Add(61 * time.Minute) }
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

// --- Me ---

func TestMe(t *testing.T) {
	found := newUserService(t, &fakeRepoManager{u: &fakeUsersRepo{getOut: &models.User{ID: 1, Email: "a@b", APIKey: "k"}}})
	u, err := found.Me(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "k", u.APIKey)

	gone := newUserService(t, &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}})
	_, err = gone.Me(context.Background(), 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	broken := newUserService(t, &fakeRepoManager{u: &fakeUsersRepo{getErr: errBoom{}}})
	_, err = broken.Me(context.Background(), 1)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

// --- against a real store ---

func TestUserService_SQLiteStore(t *testing.T) {
	db, m := openStore(t)
	s := NewUserService(db, m, testConfig())
	ctx := context.Background()

	a, err := s.Register(ctx, "ann@example.com", "pw-a")
	require.NoError(t, err)
	b, err := s.Register(ctx, "bob@example.com", "pw-b")
	require.NoError(t, err)
	assert.NotEqual(t, a.APIKey, b.APIKey)

	_, err = s.Register(ctx, "ann@example.com", "other")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	token, err := s.Login(ctx, "ann@example.com", "pw-a")
	require.NoError(t, err)

	_, err = s.Login(ctx, "ann@example.com", "pw-b")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	id, err := s.Verify(token)
	require.NoError(t, err)

	me, err := s.Me(ctx, id.UserID)
	require.NoError(t, err)
	assert.Equal(t, a.APIKey, me.APIKey)

	long := strings.Repeat("p", 80)
	_, err = s.Register(ctx, "long@example.com", long)
	require.NoError(t, err)
	_, err = s.Login(ctx, "long@example.com", long)
	require.NoError(t, err)
	_, err = s.Login(ctx, "long@example.com", long[:72])
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	gw := NewAPIKeyGateway(db, m)
	owner, err := gw.Authenticate(ctx, b.APIKey)
	require.NoError(t, err)
	assert.Equal(t, b.ID, owner.UserID)
}
