// Package features derives temporal, lag, rolling, capacity and interaction
// columns from an annotated availability frame.
//
// All per-station computations run on explicit partitions: rows are grouped by
// station_id, each group is ordered by recorded_at, values are computed on the
// ordered group and scattered back to the original row positions. The engine
// never reorders or drops rows.
package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"station-forecast-lab/internal/frame"
)

// ErrMissingInput is returned when a required upstream column is absent.
var ErrMissingInput = errors.New("missing required input column")

// ColRatio is the availability ratio column produced by labeling.
const ColRatio = "availability_ratio"

// ColDowHour is the categorical "dow_hour" composite key.
const ColDowHour = "dow_hour_interaction"

// Lag offsets in samples at the 15-minute feed cadence.
const (
	lag1h = 4
	lag3h = 12
)

// rollingWindows maps window size in samples to its column suffix.
var rollingWindows = []struct {
	size   int
	suffix string
}{
	{8, "2h"},
	{24, "6h"},
	{48, "12h"},
}

var requiredColumns = []string{
	frame.ColNumBikes,
	frame.ColNumDocks,
	frame.ColIsInstalled,
	frame.ColIsRenting,
	frame.ColIsReturning,
	frame.ColCapacity,
	ColRatio,
}

// Engine computes the derived feature columns.
type Engine struct {
	log *zap.Logger
}

// NewEngine creates an Engine. A nil logger disables logging.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Apply returns a copy of f with every feature column added.
// The input frame is not modified.
func (e *Engine) Apply(f *frame.Frame) (*frame.Frame, error) {
	in := make(map[string][]float64, len(requiredColumns))
	for _, name := range requiredColumns {
		v, ok := f.Floats(name)
		if !ok {
			return nil, fmt.Errorf("feature engineering: %w: %s", ErrMissingInput, name)
		}
		in[name] = v
	}

	out := f.Clone()
	n := f.Len()

	hour, dow := addTemporal(out, f.RecordedAt)
	weekend, _ := out.Floats("is_weekend")

	bikes := in[frame.ColNumBikes]
	addStationWindows(out, partitions(f), bikes)

	// Capacity and utilization
	capacity := in[frame.ColCapacity]
	docks := in[frame.ColNumDocks]
	utilization := make([]float64, n)
	pressure := make([]float64, n)
	vsDocks := make([]float64, n)
	remaining := make([]float64, n)
	for i := 0; i < n; i++ {
		utilization[i] = bikes[i] / capacity[i]
		pressure[i] = (capacity[i] - bikes[i]) / capacity[i]
		vsDocks[i] = bikes[i] / (docks[i] + 1)
		remaining[i] = capacity[i] - bikes[i]
	}
	out.SetFloats("capacity_utilization", utilization)
	out.SetFloats("capacity_pressure", pressure)
	out.SetFloats("bikes_vs_docks_ratio", vsDocks)
	out.SetFloats("capacity_remaining", remaining)

	// Operational flags
	installed := in[frame.ColIsInstalled]
	renting := in[frame.ColIsRenting]
	returning := in[frame.ColIsReturning]
	reliability := make([]float64, n)
	score := make([]float64, n)
	for i := 0; i < n; i++ {
		if installed[i] != 0 && renting[i] != 0 && returning[i] != 0 {
			reliability[i] = 1
		}
		score[i] = installed[i] + renting[i] + returning[i]
	}
	out.SetFloats("station_reliability", reliability)
	out.SetFloats("operational_score", score)

	// Ratio transforms
	ratio := in[ColRatio]
	squared := make([]float64, n)
	cubed := make([]float64, n)
	logRatio := make([]float64, n)
	sqrtRatio := make([]float64, n)
	for i, r := range ratio {
		squared[i] = r * r
		cubed[i] = r * r * r
		logRatio[i] = math.Log1p(r)
		sqrtRatio[i] = math.Sqrt(r)
	}
	out.SetFloats("availability_ratio_squared", squared)
	out.SetFloats("availability_ratio_cubed", cubed)
	out.SetFloats("availability_ratio_log", logRatio)
	out.SetFloats("availability_ratio_sqrt", sqrtRatio)

	// Interactions
	hourDow := make([]float64, n)
	hourWeekend := make([]float64, n)
	capacityHour := make([]float64, n)
	weekendCapacity := make([]float64, n)
	for i := 0; i < n; i++ {
		hourDow[i] = hour[i] * dow[i]
		hourWeekend[i] = hour[i] * weekend[i]
		capacityHour[i] = capacity[i] * hour[i]
		weekendCapacity[i] = weekend[i] * capacity[i]
	}
	out.SetFloats("hour_dow_interaction", hourDow)
	out.SetFloats("hour_weekend_interaction", hourWeekend)
	out.SetFloats("capacity_hour_interaction", capacityHour)
	out.SetFloats("weekend_capacity_interaction", weekendCapacity)

	lat, hasLat := f.Floats(frame.ColLat)
	lon, hasLon := f.Floats(frame.ColLon)
	if hasLat && hasLon {
		latLon := make([]float64, n)
		for i := 0; i < n; i++ {
			latLon[i] = lat[i] * lon[i]
		}
		out.SetFloats("lat_lon_interaction", latLon)
	}

	dowHour := make([]string, n)
	for i := 0; i < n; i++ {
		dowHour[i] = fmt.Sprintf("%d_%d", int(dow[i]), int(hour[i]))
	}
	out.SetStrings(ColDowHour, dowHour)

	e.log.Info("feature_engineering_complete",
		zap.Int("rows", out.Len()),
		zap.Int("columns", len(out.Names())),
	)
	return out, nil
}

// addTemporal writes calendar, peak and cyclical columns and returns the
// hour and day-of-week values.
func addTemporal(out *frame.Frame, ts []time.Time) (hour, dow []float64) {
	n := len(ts)
	hour = make([]float64, n)
	dow = make([]float64, n)
	weekend := make([]float64, n)
	month := make([]float64, n)
	day := make([]float64, n)
	morning := make([]float64, n)
	evening := make([]float64, n)
	peak := make([]float64, n)

	for i, t := range ts {
		h := t.Hour()
		d := isoWeekday(t)
		hour[i] = float64(h)
		dow[i] = float64(d)
		if d >= 6 {
			weekend[i] = 1
		}
		month[i] = float64(t.Month())
		day[i] = float64(t.Day())
		if h >= 7 && h <= 9 {
			morning[i] = 1
		}
		if h >= 17 && h <= 19 {
			evening[i] = 1
		}
		if morning[i] == 1 || evening[i] == 1 {
			peak[i] = 1
		}
	}

	out.SetFloats("hour_of_day", hour)
	out.SetFloats("day_of_week", dow)
	out.SetFloats("is_weekend", weekend)
	out.SetFloats("month", month)
	out.SetFloats("day_of_month", day)
	out.SetFloats("is_morning_peak", morning)
	out.SetFloats("is_evening_peak", evening)
	out.SetFloats("is_peak_hours", peak)

	hs, hc := cyclical(hour, 24)
	ds, dc := cyclical(dow, 7)
	ms, mc := cyclical(month, 12)
	out.SetFloats("hour_sin", hs)
	out.SetFloats("hour_cos", hc)
	out.SetFloats("dow_sin", ds)
	out.SetFloats("dow_cos", dc)
	out.SetFloats("month_sin", ms)
	out.SetFloats("month_cos", mc)
	return hour, dow
}

// isoWeekday returns 1 for Monday through 7 for Sunday.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

func cyclical(v []float64, period float64) (sin, cos []float64) {
	sin = make([]float64, len(v))
	cos = make([]float64, len(v))
	for i, x := range v {
		angle := 2 * math.Pi * x / period
		sin[i] = math.Sin(angle)
		cos[i] = math.Cos(angle)
	}
	return sin, cos
}

// addStationWindows writes lag, change, rolling and trend columns, each
// computed within one station partition.
func addStationWindows(out *frame.Frame, groups [][]int, bikes []float64) {
	n := len(bikes)
	lag1 := make([]float64, n)
	lag3 := make([]float64, n)
	accel := make([]float64, n)
	type windowCols struct {
		mean, std, min, max []float64
	}
	windows := make([]windowCols, len(rollingWindows))
	for w := range windows {
		windows[w] = windowCols{
			mean: make([]float64, n),
			std:  make([]float64, n),
			min:  make([]float64, n),
			max:  make([]float64, n),
		}
	}

	for _, idx := range groups {
		series := gather(bikes, idx)
		scatter(lag1, idx, shiftBackfill(series, lag1h))
		scatter(lag3, idx, shiftBackfill(series, lag3h))

		var mean2h []float64
		for w, spec := range rollingWindows {
			rs := rolling(series, spec.size)
			scatter(windows[w].mean, idx, rs.mean)
			scatter(windows[w].std, idx, rs.std)
			scatter(windows[w].min, idx, rs.min)
			scatter(windows[w].max, idx, rs.max)
			if w == 0 {
				mean2h = rs.mean
			}
		}

		trend := make([]float64, len(series))
		for j := range series {
			trend[j] = series[j] - mean2h[j]
		}
		scatter(accel, idx, diff(trend))
	}

	out.SetFloats("num_bikes_1h_ago", lag1)
	out.SetFloats("num_bikes_3h_ago", lag3)

	change1 := make([]float64, n)
	change3 := make([]float64, n)
	pct1 := make([]float64, n)
	for i := 0; i < n; i++ {
		change1[i] = bikes[i] - lag1[i]
		change3[i] = bikes[i] - lag3[i]
		pct1[i] = change1[i] / (lag1[i] + 1)
	}
	out.SetFloats("bikes_change_1h", change1)
	out.SetFloats("bikes_change_3h", change3)
	out.SetFloats("bikes_pct_change_1h", pct1)

	for w, spec := range rollingWindows {
		out.SetFloats("avg_bikes_"+spec.suffix, windows[w].mean)
		out.SetFloats("std_bikes_"+spec.suffix, windows[w].std)
		out.SetFloats("min_bikes_"+spec.suffix, windows[w].min)
		out.SetFloats("max_bikes_"+spec.suffix, windows[w].max)
	}

	avg2h := windows[0].mean
	trend := make([]float64, n)
	vsAvg := make([]float64, n)
	for i := 0; i < n; i++ {
		trend[i] = bikes[i] - avg2h[i]
		vsAvg[i] = bikes[i] / (avg2h[i] + 1)
	}
	out.SetFloats("trend_last_2h", trend)
	out.SetFloats("bikes_vs_avg_ratio", vsAvg)
	out.SetFloats("trend_acceleration", accel)
	out.SetFloats("volatility_2h", windows[0].std)
}
