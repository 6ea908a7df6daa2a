package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/teams"
)

var _ teams.Store = (*TeamMemberRepo)(nil)

// TeamMemberRepo provides operations for TeamMember entities. Records are
// keyed by teams.MemberKey, which makes (teamId, userId) unique.
type TeamMemberRepo struct {
	db *DB

	// Now is the clock used for createdAt and _updatedAt.
	Now func() time.Time
}

// NewTeamMemberRepo creates a new team member repository.
func NewTeamMemberRepo(db *DB) *TeamMemberRepo {
	return &TeamMemberRepo{db: db, Now: time.Now}
}

func newTeamMember() *model.TeamMember { return &model.TeamMember{} }

func (r *TeamMemberRepo) filter(ctx context.Context, keep func(*model.TeamMember) bool) ([]*model.TeamMember, error) {
	var all []*model.TeamMember
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		var err error
		all, err = scanTxn(txn, model.PrefixTeamMember+":", newTeamMember)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]*model.TeamMember, 0, len(all))
	for _, m := range all {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// FindByUserID returns every membership of a user.
func (r *TeamMemberRepo) FindByUserID(ctx context.Context, userID string) ([]*model.TeamMember, error) {
	return r.filter(ctx, func(m *model.TeamMember) bool { return m.UserID == userID })
}

// FindOneByUserAndTeam returns one membership or nil.
func (r *TeamMemberRepo) FindOneByUserAndTeam(ctx context.Context, userID, teamID string) (*model.TeamMember, error) {
	m := &model.TeamMember{ID: teams.MemberKey(teamID, userID)}
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		_, err := getTxn(txn, m.GetKey(), m)
		return err
	})
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FindByTeamID returns every member of a team.
func (r *TeamMemberRepo) FindByTeamID(ctx context.Context, teamID string) ([]*model.TeamMember, error) {
	return r.filter(ctx, func(m *model.TeamMember) bool { return m.TeamID == teamID })
}

// FindByTeamIDs returns the members of any of the teams.
func (r *TeamMemberRepo) FindByTeamIDs(ctx context.Context, teamIDs []string) ([]*model.TeamMember, error) {
	set := toSet(teamIDs)
	return r.filter(ctx, func(m *model.TeamMember) bool { return set[m.TeamID] })
}

// FindByTeamIDAndRole returns the members of a team holding role.
func (r *TeamMemberRepo) FindByTeamIDAndRole(ctx context.Context, teamID, role string) ([]*model.TeamMember, error) {
	return r.filter(ctx, func(m *model.TeamMember) bool { return m.TeamID == teamID && m.HasRole(role) })
}

// FindByUserIDAndTeamIDs returns the memberships of a user in any of the
// teams.
func (r *TeamMemberRepo) FindByUserIDAndTeamIDs(ctx context.Context, userID string, teamIDs []string) ([]*model.TeamMember, error) {
	set := toSet(teamIDs)
	return r.filter(ctx, func(m *model.TeamMember) bool { return m.UserID == userID && set[m.TeamID] })
}

// FindMembersInfoByTeamID returns one page of a team's members.
func (r *TeamMemberRepo) FindMembersInfoByTeamID(ctx context.Context, teamID string, page teams.Page) (teams.MembersInfo, error) {
	members, err := r.FindByTeamID(ctx, teamID)
	if err != nil {
		return teams.MembersInfo{}, err
	}
	return teams.MembersInfo{
		Members: teams.Paginate(members, page),
		Total:   len(members),
	}, nil
}

// CreateOne stores a new membership.
func (r *TeamMemberRepo) CreateOne(ctx context.Context, m *model.TeamMember) error {
	if err := teams.Validate(m); err != nil {
		return err
	}
	m.ID = teams.MemberKey(m.TeamID, m.UserID)
	now := r.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(m.GetKey()))
		if err == nil {
			return lderrors.ErrTeamMemberExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setTxn(txn, m, noExpiry)
	})
}

// UpdateRoles adds roles to a membership.
func (r *TeamMemberRepo) UpdateRoles(ctx context.Context, userID, teamID string, roles []string) error {
	return r.mutate(ctx, userID, teamID, func(m *model.TeamMember) { m.AddRoles(roles...) })
}

// RemoveRoles drops roles from a membership.
func (r *TeamMemberRepo) RemoveRoles(ctx context.Context, userID, teamID string, roles []string) error {
	return r.mutate(ctx, userID, teamID, func(m *model.TeamMember) { m.RemoveRoles(roles...) })
}

func (r *TeamMemberRepo) mutate(ctx context.Context, userID, teamID string, fn func(*model.TeamMember)) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		m := &model.TeamMember{ID: teams.MemberKey(teamID, userID)}
		if _, err := getTxn(txn, m.GetKey(), m); err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				return lderrors.ErrTeamMemberNotFound
			}
			return err
		}
		fn(m)
		m.UpdatedAt = r.Now()
		return setTxn(txn, m, noExpiry)
	})
}

// DeleteByUserAndTeam removes one membership.
func (r *TeamMemberRepo) DeleteByUserAndTeam(ctx context.Context, userID, teamID string) (bool, error) {
	var existed bool
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		key := model.GenerateKey(model.PrefixTeamMember, teams.MemberKey(teamID, userID))
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			existed = false
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete([]byte(key))
	})
	return existed, err
}

// DeleteByTeamID removes every membership of a team.
func (r *TeamMemberRepo) DeleteByTeamID(ctx context.Context, teamID string) (int, error) {
	var n int
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		members, err := scanTxn(txn, model.GenerateKey(model.PrefixTeamMember, teams.TeamKeyPrefix(teamID)), newTeamMember)
		if err != nil {
			return err
		}
		n = 0
		for _, m := range members {
			if m.TeamID != teamID {
				continue
			}
			if err := txn.Delete([]byte(m.GetKey())); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
