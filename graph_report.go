/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/charts"
	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart"
)

var percsSeries = []string{"rps", "p50", "p95", "p99"}

type ChartLine struct {
	XValues []float64
	YValues []float64
}

type percsRecord struct {
	tick   float64
	values [4]float64
}

// parsePercsData reads percentiles csv written by Report, lines are ordered by tick
func parsePercsData(path string) (map[string]*ChartLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	// skip csv header
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, errEmptyCSV
		}
		return nil, err
	}

	records := make([]percsRecord, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(PercsCsvHeader) {
			return nil, errMalformedCSV
		}
		var rec percsRecord
		if rec.tick, err = strconv.ParseFloat(record[1], 64); err != nil {
			return nil, errors.Wrap(errMalformedCSV, err.Error())
		}
		for i := range rec.values {
			if rec.values[i], err = strconv.ParseFloat(record[i+2], 64); err != nil {
				return nil, errors.Wrap(errMalformedCSV, err.Error())
			}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errEmptyCSV
	}
	sort.Slice(records, func(i, j int) bool { return records[i].tick < records[j].tick })

	percs := make(map[string]*ChartLine, len(percsSeries))
	for _, name := range percsSeries {
		percs[name] = &ChartLine{}
	}
	for _, rec := range records {
		for i, name := range percsSeries {
			percs[name].XValues = append(percs[name].XValues, rec.tick)
			percs[name].YValues = append(percs[name].YValues, rec.values[i])
		}
	}
	return percs, nil
}

// PercsChart interactive html chart of rps and percentiles by tick
func PercsChart(path string, title string) (*charts.Line, error) {
	d, err := parsePercsData(path)
	if err != nil {
		return nil, err
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.DataZoomOpts{},
		charts.TitleOpts{Title: title},
		charts.XAxisOpts{Name: "Time (sec)"},
		charts.YAxisOpts{Name: "Response (ms)"},
	)
	line.AddXAxis(d["rps"].XValues)
	for _, k := range percsSeries {
		line.AddYAxis(k, d[k].YValues, defaultMaxLabel(k)...)
	}
	return line, nil
}

// PercsPNGChart static chart of percentiles, rps is drawn on secondary axis
func PercsPNGChart(chartTitle string, path string) (*chart.Chart, error) {
	d, err := parsePercsData(path)
	if err != nil {
		return nil, err
	}
	var series []chart.Series
	for colorIndex, key := range percsSeries {
		line := chart.ContinuousSeries{
			Name: key,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(colorIndex).WithAlpha(255),
				DotWidth:    3.0,
				StrokeWidth: 3,
			},
			XValues: d[key].XValues,
			YValues: d[key].YValues,
		}
		if key == "rps" {
			line.YAxis = chart.YAxisSecondary
		}
		series = append(series, line)
	}

	chartData := &chart.Chart{
		Title: chartTitle,
		Background: chart.Style{
			Padding: chart.Box{
				Top:  20,
				Left: 150,
			},
		},
		XAxis: chart.XAxis{
			Name:  "Test time (Seconds)",
			Range: flatRange(d["rps"].XValues),
		},
		YAxis: chart.YAxis{
			Name:  "Response time (Ms)",
			Range: flatRange(d["p50"].YValues, d["p95"].YValues, d["p99"].YValues),
		},
		YAxisSecondary: chart.YAxis{
			Name:  "RPS",
			Range: flatRange(d["rps"].YValues),
		},
		Series: series,
		Width:  800,
		Height: 600,
	}
	chartData.Elements = []chart.Renderable{
		chart.LegendLeft(chartData),
	}
	return chartData, nil
}

// flatRange go-chart can't render zero delta axis, constant lines get a fixed range around the value
func flatRange(lines ...[]float64) chart.Range {
	min, max := 0.0, 0.0
	first := true
	for _, l := range lines {
		for _, v := range l {
			if first || v < min {
				min = v
			}
			if first || v > max {
				max = v
			}
			first = false
		}
	}
	if max-min >= 1 {
		return nil
	}
	return &chart.ContinuousRange{Min: min - 1, Max: max + 1}
}

// RenderPercsHTML renders html chart from percentiles csv
func RenderPercsHTML(csvPath, outHTML, title string) error {
	c, err := PercsChart(csvPath, title)
	if err != nil {
		return err
	}
	return RenderEChart(c, outHTML)
}

// RenderPercsPNG renders png chart from percentiles csv
func RenderPercsPNG(csvPath, outPNG, title string) error {
	c, err := PercsPNGChart(title, csvPath)
	if err != nil {
		return err
	}
	return RenderChart(c, outPNG)
}

func RenderEChart(data *charts.Line, name string) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "create %s", name)
	}
	defer f.Close()
	return errors.Wrap(data.Render(f), "render html chart")
}

func RenderChart(chartData *chart.Chart, fileName string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "create %s", fileName)
	}
	defer file.Close()
	return errors.Wrap(chartData.Render(chart.PNG, file), "render png chart")
}

// draws max label for every line
func defaultMaxLabel(metric string) []charts.SeriesOptser {
	return []charts.SeriesOptser{
		charts.MPNameTypeItem{Name: "max " + metric, Type: "max"},
		charts.MPStyleOpts{Label: charts.LabelTextOpts{Show: true}},
	}
}
