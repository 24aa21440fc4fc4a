package stats

import "github.com/hazyhaar/pandemic-registry/pkg/store"

// JSON field names follow the dashboard front end.

type PandemicSummary struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	TotalCases      int64   `json:"totalCases"`
	TotalDeaths     int64   `json:"totalDeaths"`
	MortalityRate   float64 `json:"mortalityRate"`
	AffectedRegions int64   `json:"affectedRegions"`
}

// DayPoint is the counts of one day.
type DayPoint struct {
	Date      store.Date `json:"date"`
	Cases     int64      `json:"cases"`
	Deaths    int64      `json:"deaths"`
	Recovered int64      `json:"recovered"`
}

type RegionLatest struct {
	Region   string `json:"region"`
	RegionID int64  `json:"regionId"`
	DayPoint
}

type PandemicLatest struct {
	Pandemic   string `json:"pandemic"`
	PandemicID int64  `json:"pandemicId"`
	DayPoint
}

// Comparison sets the peak day (by cases) of two pandemics in one region side
// by side. Metrics is present only when both have data.
type Comparison struct {
	Region    string             `json:"region"`
	Pandemic1 string             `json:"pandemic1"`
	Pandemic2 string             `json:"pandemic2"`
	Max1      *DayPoint          `json:"pandemic1MaxStats,omitempty"`
	Max2      *DayPoint          `json:"pandemic2MaxStats,omitempty"`
	Metrics   *ComparisonMetrics `json:"comparisonMetrics,omitempty"`
}

type ComparisonMetrics struct {
	CaseRatio      float64 `json:"caseRatio"`
	DeathRatio     float64 `json:"deathRatio"`
	MortalityRate1 float64 `json:"mortalityRate1"`
	MortalityRate2 float64 `json:"mortalityRate2"`
}

// Totals sums the latest row of every region of a set.
type Totals struct {
	TotalCases      int64   `json:"totalCases"`
	TotalDeaths     int64   `json:"totalDeaths"`
	TotalRecovered  int64   `json:"totalRecovered"`
	MortalityRate   float64 `json:"mortalityRate"`
	AffectedRegions int64   `json:"affectedRegions"`
}

// PandemicRatio compares COVID with SARS. Ratios are set only when both sides
// are positive.
type PandemicRatio struct {
	CasesRatio              *float64 `json:"casesRatio,omitempty"`
	DeathsRatio             *float64 `json:"deathsRatio,omitempty"`
	MortalityRateDifference float64  `json:"mortalityRateDifference"`
}

type RegionSnapshot struct {
	RegionID   int64     `json:"regionId"`
	RegionName string    `json:"regionName"`
	Covid      *DayPoint `json:"covid,omitempty"`
	Sars       *DayPoint `json:"sars,omitempty"`
}

type ContinentStats struct {
	ContinentID   int64            `json:"continentId"`
	ContinentName string           `json:"continentName"`
	Covid         Totals           `json:"covid"`
	Sars          Totals           `json:"sars"`
	Comparison    *PandemicRatio   `json:"comparison,omitempty"`
	Regions       []RegionSnapshot `json:"regions"`
}

type ContinentSum struct {
	Continent     string  `json:"continent"`
	TotalCases    int64   `json:"totalCases"`
	TotalDeaths   int64   `json:"totalDeaths"`
	MortalityRate float64 `json:"mortalityRate"`
}

type PandemicContinents struct {
	Pandemic       string         `json:"pandemic"`
	ContinentStats []ContinentSum `json:"continentStats"`
}

type RegionInfo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ContinentID   *int64 `json:"continentId,omitempty"`
	ContinentName string `json:"continentName,omitempty"`
	HasData       bool   `json:"hasData"`
	DataCount     int64  `json:"dataCount"`
}

type PredictionPage struct {
	Predictions []store.Prediction `json:"predictions"`
	CurrentPage int                `json:"currentPage"`
	TotalItems  int64              `json:"totalItems"`
	TotalPages  int                `json:"totalPages"`
}

type FactRow struct {
	PandemicID   int64  `json:"pandemicId"`
	PandemicName string `json:"pandemicName"`
	RegionID     int64  `json:"regionId"`
	RegionName   string `json:"regionName"`
	DayPoint
}

// Diagnostic is a quick look at what is loaded.
type Diagnostic struct {
	Pandemics    []store.Pandemic `json:"pandemics"`
	Regions      int64            `json:"regions"`
	TotalRecords int64            `json:"totalRecords"`
	LastRun      *store.Run       `json:"lastRun,omitempty"`
}
