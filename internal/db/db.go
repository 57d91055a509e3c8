package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gtfs-raptor/internal/gtfs"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LoadFeed reads the raw records of every trip whose service runs on day.
// A zero day loads all trips.
func LoadFeed(ctx context.Context, db *sql.DB, day time.Time) (*gtfs.Feed, error) {
	var serviceIDs []string
	if !day.IsZero() {
		ids, err := fetchActiveServiceIDs(ctx, db, day)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("no active services on %s", day.Format("2006-01-02"))
		}
		serviceIDs = ids
	}

	feed := &gtfs.Feed{}
	var err error
	if feed.Stops, err = fetchStops(ctx, db); err != nil {
		return nil, err
	}
	if feed.Routes, err = fetchRoutes(ctx, db); err != nil {
		return nil, err
	}
	if feed.Trips, err = fetchTrips(ctx, db, serviceIDs); err != nil {
		return nil, err
	}
	if feed.StopTimes, err = fetchStopTimes(ctx, db, serviceIDs); err != nil {
		return nil, err
	}
	if feed.Transfers, err = fetchTransfers(ctx, db); err != nil {
		return nil, err
	}
	return feed, nil
}

func fetchStops(ctx context.Context, db *sql.DB) ([]gtfs.Stop, error) {
	rows, err := db.QueryContext(ctx, `SELECT stop_id, COALESCE(stop_name, '') FROM stops ORDER BY stop_id`)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()
	var stops []gtfs.Stop
	for rows.Next() {
		var s gtfs.Stop
		if err := rows.Scan(&s.StopID, &s.StopName); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func fetchRoutes(ctx context.Context, db *sql.DB) ([]gtfs.Route, error) {
	rows, err := db.QueryContext(ctx, `SELECT route_id, COALESCE(route_short_name, '') FROM routes ORDER BY route_id`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()
	var routes []gtfs.Route
	for rows.Next() {
		var r gtfs.Route
		if err := rows.Scan(&r.RouteID, &r.RouteShortName); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func fetchTrips(ctx context.Context, db *sql.DB, serviceIDs []string) ([]gtfs.Trip, error) {
	q := `SELECT trip_id, route_id, COALESCE(trip_short_name, ''), service_id FROM trips`
	var args []any
	if serviceIDs != nil {
		q += ` WHERE service_id = ANY($1)`
		args = append(args, serviceIDs)
	}
	rows, err := db.QueryContext(ctx, q+` ORDER BY trip_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()
	var trips []gtfs.Trip
	for rows.Next() {
		var t gtfs.Trip
		if err := rows.Scan(&t.TripID, &t.RouteID, &t.TripShortName, &t.ServiceID); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func fetchStopTimes(ctx context.Context, db *sql.DB, serviceIDs []string) ([]gtfs.StopTime, error) {
	// arrival_time and departure_time may be stored as text or interval
	q := `SELECT st.trip_id, st.stop_id, st.stop_sequence,
                 COALESCE(st.arrival_time::text, ''), COALESCE(st.departure_time::text, '')
          FROM stop_times st`
	var args []any
	if serviceIDs != nil {
		q += ` JOIN trips t ON t.trip_id = st.trip_id WHERE t.service_id = ANY($1)`
		args = append(args, serviceIDs)
	}
	rows, err := db.QueryContext(ctx, q+` ORDER BY st.trip_id, st.stop_sequence`, args...)
	if err != nil {
		return nil, fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()

	var sts []gtfs.StopTime
	skipped := 0
	for rows.Next() {
		var st gtfs.StopTime
		var arr, dep string
		if err := rows.Scan(&st.TripID, &st.StopID, &st.StopSequence, &arr, &dep); err != nil {
			return nil, err
		}
		var timed bool
		st.ArrivalSec, st.DepartureSec, timed, err = stopTimeSeconds(arr, dep)
		if err != nil {
			return nil, fmt.Errorf("stop_times trip %s seq %d: %w", st.TripID, st.StopSequence, err)
		}
		if !timed {
			skipped++
			continue
		}
		sts = append(sts, st)
	}
	if skipped > 0 {
		log.Printf("skipped %d untimed stop_times rows", skipped)
	}
	return sts, rows.Err()
}

func fetchTransfers(ctx context.Context, db *sql.DB) ([]gtfs.Transfer, error) {
	cols, err := hasColumns(ctx, db, "public", "transfers", "from_stop_id", "to_stop_id", "min_transfer_time", "transfer_type")
	if err != nil {
		return nil, fmt.Errorf("introspect transfers columns: %w", err)
	}
	q, ok := transfersQuery(cols)
	if !ok {
		// transfers.txt is optional
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()
	var trs []gtfs.Transfer
	for rows.Next() {
		var tr gtfs.Transfer
		if err := rows.Scan(&tr.FromStopID, &tr.ToStopID, &tr.MinTransferTime); err != nil {
			return nil, err
		}
		trs = append(trs, tr)
	}
	return trs, rows.Err()
}

// transfersQuery selects walkable transfers given the columns present. Rows with
// transfer_type 3 (transfer not possible) are excluded.
func transfersQuery(cols map[string]bool) (string, bool) {
	if !cols["from_stop_id"] || !cols["to_stop_id"] {
		return "", false
	}
	minTime := "0"
	if cols["min_transfer_time"] {
		minTime = "COALESCE(min_transfer_time, 0)"
	}
	q := `SELECT from_stop_id, to_stop_id, ` + minTime + `
          FROM transfers
          WHERE from_stop_id IS NOT NULL AND to_stop_id IS NOT NULL AND from_stop_id <> to_stop_id`
	if cols["transfer_type"] {
		q += ` AND COALESCE(transfer_type::text, '0') NOT IN ('3', 'not_possible')`
	}
	return q, true
}

func fetchActiveServiceIDs(ctx context.Context, db *sql.DB, day time.Time) ([]string, error) {
	date := day.Format("2006-01-02")
	dow := int(day.Weekday()) // 0=Sunday

	// calendar has booleans (0/1). calendar_dates has exception_type (1 add, 2 remove)
	q := `
WITH base AS (
  SELECT service_id
  FROM calendar
  WHERE start_date <= $1::date AND end_date >= $1::date
    AND (
      ($2 = 0 AND (sunday::text IN ('1','t','true','available'))) OR
      ($2 = 1 AND (monday::text IN ('1','t','true','available'))) OR
      ($2 = 2 AND (tuesday::text IN ('1','t','true','available'))) OR
      ($2 = 3 AND (wednesday::text IN ('1','t','true','available'))) OR
      ($2 = 4 AND (thursday::text IN ('1','t','true','available'))) OR
      ($2 = 5 AND (friday::text IN ('1','t','true','available'))) OR
      ($2 = 6 AND (saturday::text IN ('1','t','true','available')))
    )
), add_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('1','added'))
), rm_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('2','removed'))
), merged AS (
  SELECT service_id FROM base
  UNION
  SELECT service_id FROM add_exc
)
SELECT DISTINCT service_id FROM merged
WHERE service_id NOT IN (SELECT service_id FROM rm_exc)
`
	rows, err := db.QueryContext(ctx, q, date, dow)
	if err != nil {
		return nil, fmt.Errorf("query active services: %w", err)
	}
	defer rows.Close()
	var svc []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		svc = append(svc, s)
	}
	return svc, rows.Err()
}

// stopTimeSeconds parses a stop time pair. A missing side takes the other's value.
// Rows with neither time (untimed intermediate stops) report timed=false and are
// skipped by the caller, as the GTFS zip source does.
func stopTimeSeconds(arr, dep string) (a, d int, timed bool, err error) {
	arr, dep = normalizeInterval(arr), normalizeInterval(dep)
	if arr == "" {
		arr = dep
	}
	if dep == "" {
		dep = arr
	}
	if arr == "" {
		return 0, 0, false, nil
	}
	if a, err = gtfs.ParseDaySeconds(arr); err != nil {
		return 0, 0, false, err
	}
	if d, err = gtfs.ParseDaySeconds(dep); err != nil {
		return 0, 0, false, err
	}
	return a, d, true, nil
}

// normalizeInterval folds Postgres interval text such as "1 day 02:10:00" into
// "26:10:00".
func normalizeInterval(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) != 3 || !strings.HasPrefix(fields[1], "day") {
		return s
	}
	days, err := strconv.Atoi(fields[0])
	if err != nil || days < 0 {
		return s
	}
	secs, err := gtfs.ParseDaySeconds(fields[2])
	if err != nil {
		return s
	}
	total := days*24*3600 + secs
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
