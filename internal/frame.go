package fleettop

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// dataResponse is the body of /api/v1/data. Pointers tell a missing field
// apart from an empty one.
type dataResponse struct {
	Labels *[]string    `json:"labels"`
	Data   *[][]float64 `json:"data"`
}

// frame is a decoded response with the column indices resolved once
type frame struct {
	rows     [][]float64
	timeIdx  int
	valueIdx int
}

func decodeFrame(body []byte, valueLabel string) (frame, error) {
	var resp dataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return frame{}, &FetchError{Kind: KindDecode, Err: err}
	}
	if resp.Labels == nil {
		return frame{}, &FetchError{Kind: KindDecode, Err: errors.New(`missing "labels" field`)}
	}
	if resp.Data == nil {
		return frame{}, &FetchError{Kind: KindDecode, Err: errors.New(`missing "data" field`)}
	}

	labels := *resp.Labels
	rows := *resp.Data
	for i, row := range rows {
		if len(row) != len(labels) {
			return frame{}, &FetchError{
				Kind: KindDecode,
				Err:  fmt.Errorf("row %d has %d columns, want %d", i, len(row), len(labels)),
			}
		}
	}

	timeIdx := slices.Index(labels, TimeLabel)
	if timeIdx < 0 {
		return frame{}, &FetchError{Kind: KindMissingLabel, Label: TimeLabel}
	}
	valueIdx := slices.Index(labels, valueLabel)
	if valueIdx < 0 {
		return frame{}, &FetchError{Kind: KindMissingLabel, Label: valueLabel}
	}

	return frame{rows: rows, timeIdx: timeIdx, valueIdx: valueIdx}, nil
}

func (f frame) series() TimeSeries {
	ts := TimeSeries{
		Timestamps: make([]float64, 0, len(f.rows)),
		Values:     make([]float64, 0, len(f.rows)),
	}
	for _, row := range f.rows {
		ts.Timestamps = append(ts.Timestamps, row[f.timeIdx])
		ts.Values = append(ts.Values, row[f.valueIdx])
	}
	return ts
}

func (f frame) last() (Sample, error) {
	if len(f.rows) == 0 {
		return Sample{}, &FetchError{Kind: KindNoData}
	}
	return Sample{Value: f.rows[len(f.rows)-1][f.valueIdx]}, nil
}
