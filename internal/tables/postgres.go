package tables

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/liability-cli/internal/model"
)

var tableIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// loadPostgres reads entities from a table with the canonical column names:
// name, latitude, longitude plus population, historical_population
// (population centers) or facility_type (medical facilities).
func (l *Loader) loadPostgres(ctx context.Context, table string, t model.EntityType) (*Table, error) {
	if l.pool == nil {
		return nil, eris.Errorf("tables: postgres source %q requires a database connection", table)
	}
	if !tableIdent.MatchString(table) {
		return nil, eris.Errorf("tables: invalid table name %q", table)
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()

	var sql string
	switch t {
	case model.PopulationCenter:
		sql = "SELECT name, latitude, longitude, population, historical_population FROM " + ident
	default:
		sql = "SELECT name, latitude, longitude, facility_type FROM " + ident
	}

	rows, err := l.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "tables: query %s", table)
	}
	defer rows.Close()

	tbl := &Table{Source: PostgresPrefix + table, Type: t, Entities: []model.AffectedEntity{}}
	for rows.Next() {
		var (
			name         *string
			lat, lon     *float64
			pop, hist    *int64
			facilityType *string
		)
		if t == model.PopulationCenter {
			err = rows.Scan(&name, &lat, &lon, &pop, &hist)
		} else {
			err = rows.Scan(&name, &lat, &lon, &facilityType)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "tables: scan %s", table)
		}

		if name == nil || strings.TrimSpace(*name) == "" || lat == nil || lon == nil || !validCoordinate(*lat, *lon) {
			tbl.Skipped++
			continue
		}

		raw := rawAttributes{
			population:   formatNullable(pop),
			historical:   formatNullable(hist),
			facilityType: derefString(facilityType),
		}
		e, defaulted := raw.entity(strings.TrimSpace(*name), t, model.LocationPoint{Latitude: *lat, Longitude: *lon}, l.defaults)
		if defaulted {
			tbl.Defaulted++
		}
		tbl.Entities = append(tbl.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "tables: iterate %s", table)
	}
	return tbl, nil
}

func formatNullable(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
