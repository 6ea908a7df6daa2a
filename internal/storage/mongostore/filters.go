package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/queue"
)

// IndexModels lists the indexes per collection.
func IndexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		model.CollectionNotificationQueue: {
			{Keys: bson.D{{Key: "uid", Value: 1}}},
			{
				Keys:    bson.D{{Key: "ts", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(queue.Retention / time.Second)),
			},
			{Keys: bson.D{{Key: "schedule", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "sending", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "error", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		model.CollectionTeamMember: {
			{Keys: bson.D{{Key: "teamId", Value: 1}}},
			{
				Keys:    bson.D{{Key: "teamId", Value: 1}, {Key: "userId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		model.CollectionBusinessHours: {
			{Keys: bson.D{{Key: "type", Value: 1}}},
		},
	}
}

// =============================================================================
// Business hours
// =============================================================================

func defaultFilter() bson.D {
	return bson.D{{Key: "type", Value: model.BusinessHourDefault}}
}

func activeOpenByDayFilter(q businesshours.DayQuery) bson.D {
	return bson.D{
		{Key: "active", Value: true},
		{Key: "workHours", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "start.cron.dayOfWeek", Value: q.Day}},
				bson.D{{Key: "finish.cron.dayOfWeek", Value: q.Day}},
			}},
			{Key: "open", Value: true},
		}}}},
	}
}

func defaultActiveOpenByDayFilter(q businesshours.DayQuery) bson.D {
	return bson.D{
		{Key: "type", Value: model.BusinessHourDefault},
		{Key: "active", Value: true},
		{Key: "workHours", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "start.cron.dayOfWeek", Value: q.Day},
			{Key: "finish.cron.dayOfWeek", Value: q.Day},
			{Key: "open", Value: true},
		}}}},
	}
}

// triggerFilter matches windows whose edge ("start" or "finish") cron fires
// at q.
func triggerFilter(edge string, q businesshours.TriggerQuery) bson.D {
	filter := bson.D{
		{Key: "active", Value: true},
		{Key: "workHours", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: edge + ".cron.dayOfWeek", Value: q.Day},
			{Key: edge + ".cron.time", Value: q.Time},
			{Key: "open", Value: true},
		}}}},
	}
	if q.Type != "" {
		filter = append(filter, bson.E{Key: "type", Value: q.Type})
	}
	return filter
}

// scheduleTablePipeline groups open work hours of active windows into the
// distinct start and finish times per cron day.
func scheduleTablePipeline() mongo.Pipeline {
	group := func(edge string) bson.A {
		return bson.A{
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$workHours." + edge + ".cron.dayOfWeek"},
				{Key: "times", Value: bson.D{{Key: "$addToSet", Value: "$workHours." + edge + ".cron.time"}}},
			}}},
			bson.D{{Key: "$project", Value: bson.D{
				{Key: "_id", Value: 0},
				{Key: "day", Value: "$_id"},
				{Key: "times", Value: 1},
			}}},
		}
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "active", Value: true}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}, {Key: "workHours", Value: 1}}}},
		{{Key: "$unwind", Value: "$workHours"}},
		{{Key: "$match", Value: bson.D{{Key: "workHours.open", Value: true}}}},
		{{Key: "$facet", Value: bson.D{
			{Key: "start", Value: group("start")},
			{Key: "finish", Value: group("finish")},
		}}},
	}
}

// =============================================================================
// Notification queue
// =============================================================================

// claimFilter matches jobs eligible at now with staleAfter as the claim
// cutoff.
func claimFilter(now, staleAfter time.Time) bson.D {
	return bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "sending", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "sending", Value: bson.D{{Key: "$lte", Value: staleAfter}}}},
		}}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "schedule", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "schedule", Value: bson.D{{Key: "$lte", Value: now}}}},
		}}},
		bson.D{{Key: "error", Value: bson.D{{Key: "$exists", Value: false}}}},
	}}}
}

func claimUpdate(now time.Time) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{{Key: "sending", Value: now}}}}
}

// claimOptions picks the oldest match and returns the updated document.
func claimOptions() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "ts", Value: 1}}).
		SetReturnDocument(options.After)
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func releaseUpdate() bson.D {
	return bson.D{{Key: "$unset", Value: bson.D{{Key: "sending", Value: 1}}}}
}

func markFailedUpdate(reason string) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{{Key: "error", Value: reason}}},
		{Key: "$unset", Value: bson.D{{Key: "sending", Value: 1}}},
	}
}

func scheduledForUserFilter(uid string) bson.D {
	return bson.D{
		{Key: "uid", Value: uid},
		{Key: "schedule", Value: bson.D{{Key: "$exists", Value: true}}},
	}
}

func clearScheduleUpdate() bson.D {
	return bson.D{{Key: "$unset", Value: bson.D{{Key: "schedule", Value: 1}}}}
}

func byUser(uid string) bson.D {
	return bson.D{{Key: "uid", Value: uid}}
}

// =============================================================================
// Team members
// =============================================================================

func memberFilter(userID, teamID string) bson.D {
	return bson.D{{Key: "teamId", Value: teamID}, {Key: "userId", Value: userID}}
}

func addRolesUpdate(roles []string, now time.Time) bson.D {
	return bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "roles", Value: bson.D{{Key: "$each", Value: roles}}}}},
		{Key: "$set", Value: bson.D{{Key: "_updatedAt", Value: now}}},
	}
}

func removeRolesUpdate(roles []string, now time.Time) bson.D {
	return bson.D{
		{Key: "$pull", Value: bson.D{{Key: "roles", Value: bson.D{{Key: "$in", Value: roles}}}}},
		{Key: "$set", Value: bson.D{{Key: "_updatedAt", Value: now}}},
	}
}

// =============================================================================
// Migrations
// =============================================================================

// lockFilter matches the control document when it is free or its lock is
// older than staleAfter.
func lockFilter(staleAfter time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: model.MigrationControlID},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "locked", Value: false}},
			bson.D{{Key: "locked", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "lockedAt", Value: bson.D{{Key: "$lte", Value: staleAfter}}}},
		}},
	}
}

func lockUpdate(now time.Time) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "locked", Value: true},
		{Key: "lockedAt", Value: now},
	}}}
}
