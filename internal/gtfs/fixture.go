package gtfs

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fixture is a compact YAML timetable: trips embed their stop times in visiting order.
type fixture struct {
	Stops []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"stops"`
	Routes []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"routes"`
	Trips []struct {
		ID        string `yaml:"id"`
		Route     string `yaml:"route"`
		Name      string `yaml:"name"`
		Service   string `yaml:"service"`
		StopTimes []struct {
			Stop      string `yaml:"stop"`
			Arrival   string `yaml:"arrival"`
			Departure string `yaml:"departure"`
		} `yaml:"stop_times"`
	} `yaml:"trips"`
	Transfers []struct {
		From     string `yaml:"from"`
		To       string `yaml:"to"`
		Duration int    `yaml:"duration"`
	} `yaml:"transfers"`
}

// LoadFixtureFile reads a YAML timetable fixture from disk.
func LoadFixtureFile(path string) (*Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFixture(f)
}

// LoadFixture decodes a YAML timetable fixture. A stop time missing either its
// arrival or departure uses the other one for both.
func LoadFixture(r io.Reader) (*Feed, error) {
	var fx fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	feed := &Feed{}
	for _, s := range fx.Stops {
		feed.Stops = append(feed.Stops, Stop{StopID: s.ID, StopName: s.Name})
	}
	for _, r := range fx.Routes {
		feed.Routes = append(feed.Routes, Route{RouteID: r.ID, RouteShortName: r.Name})
	}
	for _, t := range fx.Trips {
		feed.Trips = append(feed.Trips, Trip{TripID: t.ID, RouteID: t.Route, TripShortName: t.Name, ServiceID: t.Service})
		for i, st := range t.StopTimes {
			arrS, depS := st.Arrival, st.Departure
			if arrS == "" {
				arrS = depS
			}
			if depS == "" {
				depS = arrS
			}
			arr, err := ParseDaySeconds(arrS)
			if err != nil {
				return nil, fmt.Errorf("trip %s stop %d: arrival: %w", t.ID, i+1, err)
			}
			dep, err := ParseDaySeconds(depS)
			if err != nil {
				return nil, fmt.Errorf("trip %s stop %d: departure: %w", t.ID, i+1, err)
			}
			feed.StopTimes = append(feed.StopTimes, StopTime{
				TripID:       t.ID,
				StopID:       st.Stop,
				StopSequence: i + 1,
				ArrivalSec:   arr,
				DepartureSec: dep,
			})
		}
	}
	for _, tr := range fx.Transfers {
		feed.Transfers = append(feed.Transfers, Transfer{FromStopID: tr.From, ToStopID: tr.To, MinTransferTime: tr.Duration})
	}
	return feed, nil
}
