package sqlpersistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dogmatiq/accord/persistence/sqlpersistence/postgres"
	"github.com/dogmatiq/accord/persistence/sqlpersistence/sqlite"
	"go.uber.org/multierr"
)

// builtInDrivers are the drivers considered by selectDriver(), in order of
// preference.
var builtInDrivers = []Driver{
	postgres.Driver,
	sqlite.Driver,
}

// selectDriver returns the first built-in driver that is compatible with db.
//
// If none are compatible, the returned error combines the reason each driver
// was rejected.
func selectDriver(ctx context.Context, db *sql.DB) (Driver, error) {
	var rejections error

	for _, d := range builtInDrivers {
		err := d.IsCompatibleWith(ctx, db)
		if err == nil {
			return d, nil
		}

		rejections = multierr.Append(
			rejections,
			fmt.Errorf("%T is not compatible with %T: %w", d, db.Driver(), err),
		)
	}

	return nil, multierr.Append(
		rejections,
		fmt.Errorf("could not find a driver that is compatible with %T", db.Driver()),
	)
}
