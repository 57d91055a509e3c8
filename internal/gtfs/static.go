package gtfs

import (
	"fmt"
	"os"
	"time"

	jgtfs "github.com/jamespfennell/gtfs"
)

// LoadStatic parses a GTFS zip archive. When day is non-zero only trips whose
// service runs on that date are kept.
func LoadStatic(path string, day time.Time) (*Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	static, err := jgtfs.ParseStatic(data, jgtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse gtfs %s: %w", path, err)
	}
	return FromStatic(static, day), nil
}

// FromStatic flattens a parsed GTFS static feed into raw records.
func FromStatic(static *jgtfs.Static, day time.Time) *Feed {
	feed := &Feed{}
	for _, s := range static.Stops {
		feed.Stops = append(feed.Stops, Stop{StopID: s.Id, StopName: s.Name})
	}
	for _, r := range static.Routes {
		feed.Routes = append(feed.Routes, Route{RouteID: r.Id, RouteShortName: r.ShortName})
	}
	for i := range static.Trips {
		t := &static.Trips[i]
		if t.Route == nil {
			continue
		}
		serviceID := ""
		if t.Service != nil {
			serviceID = t.Service.Id
			if !day.IsZero() && !serviceActive(t.Service, day) {
				continue
			}
		}
		feed.Trips = append(feed.Trips, Trip{
			TripID:        t.ID,
			RouteID:       t.Route.Id,
			TripShortName: t.ShortName,
			ServiceID:     serviceID,
		})
		for _, st := range t.StopTimes {
			if st.Stop == nil {
				continue
			}
			feed.StopTimes = append(feed.StopTimes, StopTime{
				TripID:       t.ID,
				StopID:       st.Stop.Id,
				StopSequence: st.StopSequence,
				ArrivalSec:   int(st.ArrivalTime / time.Second),
				DepartureSec: int(st.DepartureTime / time.Second),
			})
		}
	}
	for _, tr := range static.Transfers {
		if tr.From == nil || tr.To == nil || tr.Type == jgtfs.TransferType_NotPossible {
			continue
		}
		minTime := 0
		if tr.MinTransferTime != nil {
			minTime = int(*tr.MinTransferTime)
		}
		feed.Transfers = append(feed.Transfers, Transfer{FromStopID: tr.From.Id, ToStopID: tr.To.Id, MinTransferTime: minTime})
	}
	return feed
}

// serviceActive mirrors calendar.txt + calendar_dates.txt semantics: removals win,
// additions apply outside the weekly pattern.
func serviceActive(svc *jgtfs.Service, day time.Time) bool {
	for _, d := range svc.RemovedDates {
		if sameDate(d, day) {
			return false
		}
	}
	for _, d := range svc.AddedDates {
		if sameDate(d, day) {
			return true
		}
	}
	if !svc.StartDate.IsZero() && dateBefore(day, svc.StartDate) {
		return false
	}
	if !svc.EndDate.IsZero() && dateBefore(svc.EndDate, day) {
		return false
	}
	switch day.Weekday() {
	case time.Monday:
		return svc.Monday
	case time.Tuesday:
		return svc.Tuesday
	case time.Wednesday:
		return svc.Wednesday
	case time.Thursday:
		return svc.Thursday
	case time.Friday:
		return svc.Friday
	case time.Saturday:
		return svc.Saturday
	default:
		return svc.Sunday
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
