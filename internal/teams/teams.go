// Package teams defines team membership storage.
package teams

import (
	"context"
	"strconv"
	"strings"

	"github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

// Page bounds a listing. A zero Limit means no limit.
type Page struct {
	Limit int
	Skip  int
}

// MembersInfo is one page of a team's members plus the total count.
type MembersInfo struct {
	Members []*model.TeamMember `json:"members"`
	Total   int                 `json:"total"`
}

// Store is the team membership store. (TeamID, UserID) is unique. Finders
// return nil or an empty slice for absent records.
type Store interface {
	FindByUserID(ctx context.Context, userID string) ([]*model.TeamMember, error)
	FindOneByUserAndTeam(ctx context.Context, userID, teamID string) (*model.TeamMember, error)
	FindByTeamID(ctx context.Context, teamID string) ([]*model.TeamMember, error)
	FindByTeamIDs(ctx context.Context, teamIDs []string) ([]*model.TeamMember, error)
	FindByTeamIDAndRole(ctx context.Context, teamID, role string) ([]*model.TeamMember, error)
	FindByUserIDAndTeamIDs(ctx context.Context, userID string, teamIDs []string) ([]*model.TeamMember, error)
	FindMembersInfoByTeamID(ctx context.Context, teamID string, page Page) (MembersInfo, error)

	// CreateOne stores a new membership. A duplicate (TeamID, UserID)
	// returns errors.ErrTeamMemberExists.
	CreateOne(ctx context.Context, m *model.TeamMember) error
	// UpdateRoles adds roles not already held.
	UpdateRoles(ctx context.Context, userID, teamID string, roles []string) error
	// RemoveRoles drops the listed roles.
	RemoveRoles(ctx context.Context, userID, teamID string, roles []string) error
	// DeleteByUserAndTeam removes one membership and reports whether it
	// existed.
	DeleteByUserAndTeam(ctx context.Context, userID, teamID string) (bool, error)
	// DeleteByTeamID removes every membership of a team and returns the
	// count.
	DeleteByTeamID(ctx context.Context, teamID string) (int, error)
}

// MemberKey is the unique id a membership is stored under. The team id is
// length-prefixed, so no pair of ids maps to the same key whatever
// characters they contain.
func MemberKey(teamID, userID string) string {
	return TeamKeyPrefix(teamID) + userID
}

// TeamKeyPrefix is the prefix shared by every MemberKey of teamID and of no
// other team.
func TeamKeyPrefix(teamID string) string {
	return strconv.Itoa(len(teamID)) + ":" + teamID + ":"
}

// Validate checks the fields CreateOne requires.
func Validate(m *model.TeamMember) error {
	if strings.TrimSpace(m.TeamID) == "" {
		return errors.NewUserErrorWithField("teamId", m.TeamID,
			"Team id is required", "Pass the team id as the first argument")
	}
	if strings.TrimSpace(m.UserID) == "" || strings.ContainsAny(m.UserID, " \t\n") {
		return errors.NewUserErrorWithField("userId", m.UserID,
			"Invalid user id", errors.Suggestions[errors.ErrInvalidUserID])
	}
	return nil
}

// Paginate applies page to members.
func Paginate(members []*model.TeamMember, page Page) []*model.TeamMember {
	if page.Skip >= len(members) {
		return []*model.TeamMember{}
	}
	members = members[page.Skip:]
	if page.Limit > 0 && page.Limit < len(members) {
		members = members[:page.Limit]
	}
	return members
}
