package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/teams"
)

func setupTeams(t *testing.T) *TeamMemberRepo {
	t.Helper()
	clock := newTestClock()
	repo := NewTeamMemberRepo(setupTestDB(t))
	repo.Now = func() time.Time {
		clock.Advance(time.Second)
		return clock.Now()
	}
	return repo
}

func addMember(t *testing.T, repo *TeamMemberRepo, teamID, userID string, roles ...string) {
	t.Helper()
	require.NoError(t, repo.CreateOne(context.Background(), &model.TeamMember{
		TeamID: teamID,
		UserID: userID,
		Roles:  roles,
	}))
}

func userIDs(members []*model.TeamMember) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func TestTeamMemberCreateOne(t *testing.T) {
	repo := setupTeams(t)
	ctx := context.Background()

	addMember(t, repo, "t1", "alice", "owner")

	m, err := repo.FindOneByUserAndTeam(ctx, "alice", "t1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []string{"owner"}, m.Roles)
	assert.False(t, m.CreatedAt.IsZero())

	err = repo.CreateOne(ctx, &model.TeamMember{TeamID: "t1", UserID: "alice"})
	assert.ErrorIs(t, err, lderrors.ErrTeamMemberExists)

	err = repo.CreateOne(ctx, &model.TeamMember{TeamID: "t1", UserID: ""})
	assert.True(t, lderrors.IsUserError(err))

	missing, err := repo.FindOneByUserAndTeam(ctx, "bob", "t1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTeamMemberFinders(t *testing.T) {
	repo := setupTeams(t)
	ctx := context.Background()

	addMember(t, repo, "t1", "alice", "owner")
	addMember(t, repo, "t1", "bob")
	addMember(t, repo, "t2", "alice", "moderator")
	addMember(t, repo, "t3", "carol")

	got, err := repo.FindByUserID(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.FindByTeamID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, userIDs(got))

	got, err = repo.FindByTeamIDs(ctx, []string{"t1", "t3"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, userIDs(got))

	got, err = repo.FindByTeamIDAndRole(ctx, "t1", "owner")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, userIDs(got))

	got, err = repo.FindByUserIDAndTeamIDs(ctx, "alice", []string{"t2", "t3"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].TeamID)
}

func TestTeamMemberMembersInfo(t *testing.T) {
	repo := setupTeams(t)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c", "d", "e"} {
		addMember(t, repo, "t1", u)
	}

	info, err := repo.FindMembersInfoByTeamID(ctx, "t1", teams.Page{Limit: 2, Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, info.Total)
	assert.Equal(t, []string{"b", "c"}, userIDs(info.Members))

	info, err = repo.FindMembersInfoByTeamID(ctx, "t1", teams.Page{Skip: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, info.Total)
	assert.Empty(t, info.Members)
}

func TestTeamMemberRoles(t *testing.T) {
	repo := setupTeams(t)
	ctx := context.Background()

	addMember(t, repo, "t1", "alice", "member")

	require.NoError(t, repo.UpdateRoles(ctx, "alice", "t1", []string{"owner", "member"}))
	m, err := repo.FindOneByUserAndTeam(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"member", "owner"}, m.Roles)

	require.NoError(t, repo.RemoveRoles(ctx, "alice", "t1", []string{"member"}))
	m, err = repo.FindOneByUserAndTeam(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"owner"}, m.Roles)

	err = repo.UpdateRoles(ctx, "ghost", "t1", []string{"owner"})
	assert.ErrorIs(t, err, lderrors.ErrTeamMemberNotFound)
}

func TestTeamMemberDelete(t *testing.T) {
	repo := setupTeams(t)
	ctx := context.Background()

	addMember(t, repo, "t1", "alice")
	addMember(t, repo, "t1", "bob")
	addMember(t, repo, "t10", "carol")

	existed, err := repo.DeleteByUserAndTeam(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = repo.DeleteByUserAndTeam(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.False(t, existed)

	n, err := repo.DeleteByTeamID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := repo.FindByTeamID(ctx, "t10")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestTeamMemberDottedIDsDoNotCollide(t *testing.T) {
	repo := setupTeams(t)
	ctx := context.Background()

	addMember(t, repo, "a.b", "c", "owner")
	addMember(t, repo, "a", "b.c")
	addMember(t, repo, "a", "b")

	m, err := repo.FindOneByUserAndTeam(ctx, "c", "a.b")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "a.b", m.TeamID)
	assert.Equal(t, []string{"owner"}, m.Roles)

	m, err = repo.FindOneByUserAndTeam(ctx, "b.c", "a")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "a", m.TeamID)
	assert.Empty(t, m.Roles)

	n, err := repo.DeleteByTeamID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := repo.FindByTeamID(ctx, "a.b")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, userIDs(left))
}
