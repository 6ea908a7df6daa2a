package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/teams"
)

var _ teams.Store = (*TeamMembers)(nil)

// TeamMembers is the team_member collection. The unique {teamId, userId}
// index backs the membership invariant.
type TeamMembers struct {
	coll *mongo.Collection
	now  func() time.Time
}

var byCreatedAt = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

func (c *TeamMembers) find(ctx context.Context, filter bson.D, opts ...*options.FindOptions) ([]*model.TeamMember, error) {
	opts = append([]*options.FindOptions{options.Find().SetSort(byCreatedAt)}, opts...)
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	members := []*model.TeamMember{}
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// FindByUserID returns every membership of a user.
func (c *TeamMembers) FindByUserID(ctx context.Context, userID string) ([]*model.TeamMember, error) {
	return c.find(ctx, bson.D{{Key: "userId", Value: userID}})
}

// FindOneByUserAndTeam returns one membership or nil.
func (c *TeamMembers) FindOneByUserAndTeam(ctx context.Context, userID, teamID string) (*model.TeamMember, error) {
	var m model.TeamMember
	err := c.coll.FindOne(ctx, memberFilter(userID, teamID)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByTeamID returns the members of a team.
func (c *TeamMembers) FindByTeamID(ctx context.Context, teamID string) ([]*model.TeamMember, error) {
	return c.find(ctx, bson.D{{Key: "teamId", Value: teamID}})
}

// FindByTeamIDs returns the members of any listed team.
func (c *TeamMembers) FindByTeamIDs(ctx context.Context, teamIDs []string) ([]*model.TeamMember, error) {
	return c.find(ctx, bson.D{{Key: "teamId", Value: bson.D{{Key: "$in", Value: teamIDs}}}})
}

// FindByTeamIDAndRole returns the members of a team holding role.
func (c *TeamMembers) FindByTeamIDAndRole(ctx context.Context, teamID, role string) ([]*model.TeamMember, error) {
	return c.find(ctx, bson.D{{Key: "teamId", Value: teamID}, {Key: "roles", Value: role}})
}

// FindByUserIDAndTeamIDs returns the memberships of a user in the listed
// teams.
func (c *TeamMembers) FindByUserIDAndTeamIDs(ctx context.Context, userID string, teamIDs []string) ([]*model.TeamMember, error) {
	return c.find(ctx, bson.D{
		{Key: "userId", Value: userID},
		{Key: "teamId", Value: bson.D{{Key: "$in", Value: teamIDs}}},
	})
}

// FindMembersInfoByTeamID returns one page of a team plus its total.
func (c *TeamMembers) FindMembersInfoByTeamID(ctx context.Context, teamID string, page teams.Page) (teams.MembersInfo, error) {
	filter := bson.D{{Key: "teamId", Value: teamID}}
	total, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return teams.MembersInfo{}, err
	}
	opts := options.Find().SetSkip(int64(page.Skip))
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	members, err := c.find(ctx, filter, opts)
	if err != nil {
		return teams.MembersInfo{}, err
	}
	return teams.MembersInfo{Members: members, Total: int(total)}, nil
}

// CreateOne inserts a membership.
func (c *TeamMembers) CreateOne(ctx context.Context, m *model.TeamMember) error {
	if err := teams.Validate(m); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = teams.MemberKey(m.TeamID, m.UserID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = c.now()
	}
	_, err := c.coll.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return lderrors.ErrTeamMemberExists
	}
	return err
}

func (c *TeamMembers) updateOne(ctx context.Context, userID, teamID string, update bson.D) error {
	res, err := c.coll.UpdateOne(ctx, memberFilter(userID, teamID), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return lderrors.ErrTeamMemberNotFound
	}
	return nil
}

// UpdateRoles adds roles not already held.
func (c *TeamMembers) UpdateRoles(ctx context.Context, userID, teamID string, roles []string) error {
	return c.updateOne(ctx, userID, teamID, addRolesUpdate(roles, c.now()))
}

// RemoveRoles drops the listed roles.
func (c *TeamMembers) RemoveRoles(ctx context.Context, userID, teamID string, roles []string) error {
	return c.updateOne(ctx, userID, teamID, removeRolesUpdate(roles, c.now()))
}

// DeleteByUserAndTeam removes one membership.
func (c *TeamMembers) DeleteByUserAndTeam(ctx context.Context, userID, teamID string) (bool, error) {
	res, err := c.coll.DeleteOne(ctx, memberFilter(userID, teamID))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// DeleteByTeamID removes every membership of a team.
func (c *TeamMembers) DeleteByTeamID(ctx context.Context, teamID string) (int, error) {
	res, err := c.coll.DeleteMany(ctx, bson.D{{Key: "teamId", Value: teamID}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
