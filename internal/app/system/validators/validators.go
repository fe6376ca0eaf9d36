// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/taskspace/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the users and workspaces collections (if missing) and
// attaches JSON-Schema validators. Servers that reject collMod validators
// are logged and skipped.
func EnsureAll(ctx context.Context, usersDB, workspacesDB *mongo.Database) error {
	var problems []string

	ensure := func(db *mongo.Database, coll string, schema bson.M) {
		if err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isUnsupported(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure(usersDB, "users", usersSchema())
	ensure(workspacesDB, "workspaces", workspacesSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------------- collections ---------------------------- */

func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err == nil && len(names) > 0 {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return nil
	}
	// Listing failed or found nothing: create and tolerate a concurrent create.
	if err := db.CreateCollection(ctx, name); err != nil {
		if hasCode(err, 48, "already exists", "namespace exists") {
			return nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

// isUnsupported matches "no such command" (59) and "not implemented" (115)
// as returned by DocumentDB and similar deployments.
func isUnsupported(err error) bool {
	return hasCode(err, 59, "no such command") ||
		hasCode(err, 115, "not implemented", "not supported")
}

func hasCode(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

/* ---------------------------- JSON schemas ---------------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "email", "password_hash", "workspaces"},
			"properties": bson.M{
				"name":          nonBlank,
				"name_ci":       bson.M{"bsonType": "string"},
				"email":         nonBlank,
				"password_hash": nonBlank,
				"workspaces":    bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
			},
		},
	}
}

func workspacesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "owner", "members", "invite_code"},
			"properties": bson.M{
				"name":        nonBlank,
				"name_ci":     bson.M{"bsonType": "string"},
				"description": bson.M{"bsonType": "string", "maxLength": models.MaxWorkspaceDescription},
				"owner":       bson.M{"bsonType": "objectId"},
				"invite_code": bson.M{"bsonType": "string", "pattern": "^[0-9a-f]+$"},
				"channels":    bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"members": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"user_id", "role"},
						"properties": bson.M{
							"user_id": bson.M{"bsonType": "objectId"},
							"email":   bson.M{"bsonType": "string"},
							"role":    bson.M{"enum": bson.A{models.RoleAdmin, models.RoleMember}},
						},
					},
				},
			},
		},
	}
}
