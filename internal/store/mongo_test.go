package store

import (
	"context"
	"testing"
	"time"

	"github.com/diewo77/go-crm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const usersNS = "crm.users"

// noMatch is an empty find result.
func noMatch() bson.D {
	return mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch)
}

func duplicateKey() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"})
}

func TestMongoStore_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("first identity claims admin", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			noMatch(),
			mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		u, err := s.Create(context.Background(), NewIdentity{Email: " Ann@Example.com", Name: "Ann", PasswordHash: "h"})
		require.NoError(mt, err)
		assert.Equal(mt, models.RoleAdmin, u.Role)
		assert.Equal(mt, "ann@example.com", u.Email)
		assert.Empty(mt, u.PasswordHash)
		assert.True(mt, primitive.IsValidObjectID(u.ID))
	})

	mt.Run("later identity is user", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			noMatch(),
			mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
			mtest.CreateSuccessResponse(),
		)

		u, err := s.Create(context.Background(), NewIdentity{Email: "ben@example.com", Name: "Ben", PasswordHash: "h"})
		require.NoError(mt, err)
		assert.Equal(mt, models.RoleUser, u.Role)
	})

	mt.Run("lost bootstrap race is user", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			noMatch(),
			mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch),
			duplicateKey(),
			mtest.CreateSuccessResponse(),
		)

		u, err := s.Create(context.Background(), NewIdentity{Email: "cat@example.com", Name: "Cat", PasswordHash: "h"})
		require.NoError(mt, err)
		assert.Equal(mt, models.RoleUser, u.Role)
	})

	mt.Run("duplicate key on insert", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(noMatch(), duplicateKey())

		_, err := s.Create(context.Background(), NewIdentity{Email: "dan@example.com", Name: "Dan", PasswordHash: "h", Role: models.RoleSales})
		assert.ErrorIs(mt, err, ErrDuplicateIdentity)
	})

	mt.Run("existing email without index", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
		}))

		_, err := s.Create(context.Background(), NewIdentity{Email: "ALICE@example.com", Name: "Alice", PasswordHash: "h"})
		assert.ErrorIs(mt, err, ErrDuplicateIdentity)

		var commands []string
		for _, ev := range mt.GetAllStartedEvents() {
			commands = append(commands, ev.CommandName)
		}
		assert.Equal(mt, []string{"find"}, commands)
		filter := mt.GetAllStartedEvents()[0].Command.Lookup("filter").Document()
		assert.Equal(mt, "alice@example.com", filter.Lookup("email").StringValue())
	})
}

func TestMongoStore_UpdateProfile(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	oid := primitive.NewObjectID()

	mt.Run("uses document field names", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			noMatch(),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: oid},
				{Key: "email", Value: "ada@example.com"},
				{Key: "firstName", Value: "Ada"},
			}}),
		)

		first, email := "Ada", "Ada@Example.com"
		u, err := s.UpdateProfile(context.Background(), oid.Hex(), models.ProfileUpdate{FirstName: &first, Email: &email})
		require.NoError(mt, err)
		assert.Equal(mt, "Ada", u.FirstName)

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 2)
		assert.Equal(mt, "find", events[0].CommandName)
		assert.Equal(mt, "findAndModify", events[1].CommandName)
		set := events[1].Command.Lookup("update", "$set").Document()
		assert.Equal(mt, "Ada", set.Lookup("firstName").StringValue())
		assert.Equal(mt, "ada@example.com", set.Lookup("email").StringValue())
		_, err = set.LookupErr("first_name")
		assert.Error(mt, err)
		_, err = set.LookupErr("updatedAt")
		assert.NoError(mt, err)
	})

	mt.Run("email held by another account", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
		}))

		email := "taken@example.com"
		_, err := s.UpdateProfile(context.Background(), oid.Hex(), models.ProfileUpdate{Email: &email})
		assert.ErrorIs(mt, err, ErrDuplicateIdentity)
		require.Len(mt, mt.GetAllStartedEvents(), 1)
	})
}

func TestMongoStore_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	oid := primitive.NewObjectID()

	mt.Run("by email", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, usersNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "email", Value: "eve@example.com"},
			{Key: "name", Value: "Eve"},
			{Key: "password", Value: "digest"},
			{Key: "role", Value: "manager"},
			{Key: "active", Value: true},
			{Key: "sessionVersion", Value: int32(3)},
		}))

		u, err := s.FindByEmail(context.Background(), "EVE@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), u.ID)
		assert.Equal(mt, models.RoleManager, u.Role)
		assert.Equal(mt, "digest", u.PasswordHash)
		assert.Equal(mt, 3, u.SessionVersion)
	})

	mt.Run("existing account document", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		created := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
		lastLogin := time.Date(2025, 1, 7, 18, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "name", Value: "Grace Hopper"},
			{Key: "email", Value: "grace@example.com"},
			{Key: "password", Value: "$2a$10$abcdefghijklmnopqrstuv"},
			{Key: "role", Value: "sales"},
			{Key: "firstName", Value: "Grace"},
			{Key: "lastName", Value: "Hopper"},
			{Key: "jobTitle", Value: "Rear Admiral"},
			{Key: "timezone", Value: "America/New_York"},
			{Key: "language", Value: "en"},
			{Key: "profileImage", Value: "/avatars/grace.png"},
			{Key: "lastLogin", Value: primitive.NewDateTimeFromTime(lastLogin)},
			{Key: "active", Value: true},
			{Key: "createdAt", Value: primitive.NewDateTimeFromTime(created)},
			{Key: "updatedAt", Value: primitive.NewDateTimeFromTime(created)},
			{Key: "__v", Value: int32(0)},
		}))

		u, err := s.FindByEmail(context.Background(), "grace@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, "$2a$10$abcdefghijklmnopqrstuv", u.PasswordHash)
		assert.Equal(mt, models.RoleSales, u.Role)
		assert.Equal(mt, "Grace", u.FirstName)
		assert.Equal(mt, "Hopper", u.LastName)
		assert.Equal(mt, "Rear Admiral", u.JobTitle)
		assert.Equal(mt, "/avatars/grace.png", u.ProfileImage)
		require.NotNil(mt, u.LastLogin)
		assert.True(mt, lastLogin.Equal(*u.LastLogin))
		assert.True(mt, created.Equal(u.CreatedAt))
		assert.Zero(mt, u.SessionVersion)
	})

	mt.Run("absent", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch))

		_, err := s.FindByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		_, err := s.FindByID(context.Background(), "not-an-object-id")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoStore_BumpSessionVersion(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	oid := primitive.NewObjectID()

	mt.Run("returns new version", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: oid},
			{Key: "email", Value: "f@example.com"},
			{Key: "sessionVersion", Value: int32(5)},
		}}))

		v, err := s.BumpSessionVersion(context.Background(), oid.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, 5, v)
	})
}

func TestMongoStore_NotificationSettingsDefault(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unsaved settings", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "crm.notification_settings", mtest.FirstBatch))

		ns, err := s.NotificationSettings(context.Background(), "u1")
		require.NoError(mt, err)
		assert.Equal(mt, models.DefaultNotificationSettings("u1"), ns)
	})

	mt.Run("save upserts", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		s.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}))

		ns := models.DefaultNotificationSettings("u1")
		require.NoError(mt, s.SaveNotificationSettings(context.Background(), ns))
		assert.Equal(mt, s.now(), ns.UpdatedAt)
	})
}
