// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"sync"

	"github.com/dalemusser/taskspace/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// The two clients are opened once in ConnectDB and shared by every request.
type DBDeps struct {
	UsersMongoClient        *mongo.Client
	UsersMongoDatabase      *mongo.Database
	WorkspacesMongoClient   *mongo.Client
	WorkspacesMongoDatabase *mongo.Database

	// bg holds the background workers started in Startup so Shutdown can
	// stop them. DBDeps is passed by value; the pointer is shared.
	bg *background
}

type background struct {
	mu         sync.Mutex
	reconciler *workers.MembershipReconciler
}
