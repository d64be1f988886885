package models

import "time"

type Race struct {
	Season      int       `json:"season"`
	Round       int       `json:"round"`
	RaceName    string    `json:"race_name"`
	Date        time.Time `json:"date"`
	CircuitName string    `json:"circuit_name"`
	Country     string    `json:"country"`
}

type ErgastResponse struct {
	MRData struct {
		RaceTable struct {
			Season string       `json:"season"`
			Races  []ErgastRace `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

type ErgastRace struct {
	Season   string `json:"season"`
	Round    string `json:"round"`
	RaceName string `json:"raceName"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Circuit  struct {
		CircuitName string `json:"circuitName"`
		Location    struct {
			Locality string `json:"locality"`
			Country  string `json:"country"`
		} `json:"Location"`
	} `json:"Circuit"`
}
