package audit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)

	assert.ErrorIs(t, svc.Append(context.Background(), Event{ActorSubjectID: "u"}), ErrInvalidEvent)
	assert.ErrorIs(t, svc.Append(context.Background(), Event{Type: EventTypeAdminAction}), ErrInvalidEvent)
	assert.NoError(t, svc.Append(context.Background(), Event{Type: EventTypeAccessDenied}))
}

func TestService_LogAdminAction(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)
	ts := time.Unix(1700000000, 0)
	svc.clock = func() time.Time { return ts }

	svc.LogAdminAction(context.Background(), "admin-1", "1.2.3.4", "blog_posts/p1", "post deleted", map[string]any{"slug": "x"})

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeAdminAction, evs[0].Type)
	assert.Equal(t, "1.2.3.4", evs[0].IPAddress)
	assert.Equal(t, "blog_posts/p1", evs[0].Resource)
	assert.Equal(t, ts.UTC(), evs[0].CreatedAt)
	assert.NotEmpty(t, evs[0].ID)
}

func TestService_LogDeniedAllowsAnonymous(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	svc.LogDenied(context.Background(), "", "admin", "no_session", "10.0.0.1", "/api/admin/stats")

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeAccessDenied, evs[0].Type)
	assert.Equal(t, "no_session", evs[0].Reason)
	assert.Empty(t, evs[0].ActorSubjectID)
}

func TestService_FailuresAreSwallowed(t *testing.T) {
	repo := NewMemoryRepo()
	repo.SetErr(errors.New("disk full"))
	svc := NewService(repo, nil)

	assert.NotPanics(t, func() {
		svc.LogAdminAction(context.Background(), "admin-1", "", "seed", "seeded", nil)
	})
	assert.Empty(t, repo.Events())
}

func TestPostgresRepository_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs("e1", "admin_action", "u1", "", "", "", "seed", "seeded", `{"posts":6}`, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewPostgresRepository(db).Append(context.Background(), Event{
		ID: "e1", Type: EventTypeAdminAction, ActorSubjectID: "u1", Resource: "seed", Message: "seeded",
		Metadata: map[string]any{"posts": 6}, CreatedAt: ts,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
