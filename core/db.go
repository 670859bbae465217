package core

import "context"

type (
	DBOrdering struct {
		Field     string
		Ascending bool
	}

	// Migrator runs the schema migrations.
	Migrator interface {
		Run(ctx context.Context, command string, args ...string) error
		Version(ctx context.Context) (int64, error)
	}

	// Locker takes named locks held across every instance of the app.
	Locker interface {
		// Lock blocks until name is free or ctx is done.
		Lock(ctx context.Context, name string) (unlock func(), err error)
	}
)

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
