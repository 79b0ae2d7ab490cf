package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSVHeader is the header row of an exported history.
var CSVHeader = []string{"Time", "Temp", "Relais"}

// Row is one exported line: a temperature sample and the relay state that
// was in effect at that moment, if any.
type Row struct {
	Time     time.Time
	Temp     float64
	Relay    float64
	HasRelay bool
}

// Join pairs every temperature sample with the latest relay sample recorded
// at or before it. Both buffers are evicted independently, so pairing by
// position would misalign rows once they drift apart.
func Join(temps, relays []Sample) []Row {
	rows := make([]Row, 0, len(temps))
	j := 0
	var cur Sample
	have := false
	for _, t := range temps {
		for j < len(relays) && !relays[j].Time.After(t.Time) {
			cur, have = relays[j], true
			j++
		}
		row := Row{Time: t.Time, Temp: t.Value}
		if have {
			row.Relay = cur.Value
			row.HasRelay = true
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes the joined history as Time,Temp,Relais with millisecond
// epoch timestamps. The relay column is empty when no relay sample precedes
// the temperature sample.
func WriteCSV(w io.Writer, temps, relays []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range Join(temps, relays) {
		relay := ""
		if row.HasRelay {
			relay = formatValue(row.Relay)
		}
		rec := []string{
			strconv.FormatInt(row.Time.UnixMilli(), 10),
			formatValue(row.Temp),
			relay,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses output produced by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range CSVHeader {
		if header[i] != h {
			return nil, fmt.Errorf("unexpected header column %d: %q", i, header[i])
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		ms, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse time: %w", line, err)
		}
		temp, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse temp: %w", line, err)
		}
		row := Row{Time: time.UnixMilli(ms), Temp: temp}
		if rec[2] != "" {
			relay, err := strconv.ParseFloat(rec[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse relay: %w", line, err)
			}
			row.Relay = relay
			row.HasRelay = true
		}
		rows = append(rows, row)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
