package sequence

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/gogmc/pkg/channel"
)

// Record is one row of a dosing program the way the panel's table stores
// it: raw per-slot cell text, the mixture ppm that produced the row (two
// line panels only) and the hold duration in seconds. Blank or "-" cells
// mean the slot is switched off for that step.
type Record struct {
	Index    int
	PPM      string
	Values   map[channel.Slot]string
	Duration float64
}

// Flow parses a slot cell. Off cells and unparsable text report ok false.
func (r Record) Flow(slot channel.Slot) (float64, bool) {
	text := strings.TrimSpace(r.Values[slot])
	if text == "" || text == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// PPMValue parses the record's mixture ppm cell.
func (r Record) PPMValue() (float64, bool) {
	text := strings.TrimSpace(r.PPM)
	if text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// StepFromRecord binds a record to physical channels through the mapping.
// Every listed slot takes part: a parsable positive cell drives its
// channel, everything else switches it off.
func StepFromRecord(rec Record, mapping channel.Mapping, slots []channel.Slot) (Step, error) {
	flows := make(map[channel.Slot]float64, len(slots))
	for _, slot := range slots {
		if v, ok := rec.Flow(slot); ok {
			flows[slot] = v
		} else {
			flows[slot] = 0
		}
	}
	return StepForSlots(mapping, flows, time.Duration(rec.Duration*float64(time.Second)))
}

// RecordFromStep renders a bound step back into table form. Slots whose
// channel the step drives show the setpoint, the rest show "-".
func RecordFromStep(index int, step Step, mapping channel.Mapping, slots []channel.Slot) (Record, error) {
	rec := Record{
		Index:    index,
		Values:   make(map[channel.Slot]string, len(slots)),
		Duration: step.Duration.Seconds(),
	}

	for _, slot := range slots {
		ch, err := mapping.Resolve(slot)
		if err != nil {
			return Record{}, err
		}
		if value, ok := step.Setpoints[ch]; ok {
			rec.Values[slot] = strconv.FormatFloat(value, 'f', -1, 64)
		} else {
			rec.Values[slot] = "-"
		}
	}

	return rec, nil
}

// WriteCSV writes a program in the panel's flat table layout. The two line
// panel carries the mixture ppm column and suffixes the slot headers with
// the unit; the four line panel stores bare slot columns.
func WriteCSV(w io.Writer, slots []channel.Slot, withPPM bool, records []Record) error {
	cw := csv.NewWriter(w)

	header := []string{"step"}
	if withPPM {
		header = append(header, "flow_ppm")
		for _, slot := range slots {
			header = append(header, string(slot)+"_sccm")
		}
	} else {
		for _, slot := range slots {
			header = append(header, string(slot))
		}
	}
	header = append(header, "duration")

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write sequence header: %w", err)
	}

	for i, rec := range records {
		row := []string{strconv.Itoa(rec.Index)}
		if withPPM {
			row = append(row, rec.PPM)
		}
		for _, slot := range slots {
			row = append(row, rec.Values[slot])
		}
		row = append(row, strconv.FormatFloat(rec.Duration, 'f', -1, 64))

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write sequence row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a program written by WriteCSV, detecting the layout from
// the header. Rows are renumbered in file order; the stored step column is
// display-only.
func ReadCSV(r io.Reader) ([]Record, []channel.Slot, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sequence header: %w", err)
	}
	if len(header) < 3 || header[0] != "step" || header[len(header)-1] != "duration" {
		return nil, nil, fmt.Errorf("unrecognized sequence header %v", header)
	}

	slotCols := header[1 : len(header)-1]
	withPPM := len(slotCols) > 0 && slotCols[0] == "flow_ppm"
	if withPPM {
		slotCols = slotCols[1:]
	}

	slots := make([]channel.Slot, 0, len(slotCols))
	for _, col := range slotCols {
		slot := channel.Slot(strings.TrimSuffix(col, "_sccm"))
		if !knownSlot(slot) {
			return nil, nil, fmt.Errorf("unrecognized sequence column %q", col)
		}
		slots = append(slots, slot)
	}

	var records []Record
	for i := 1; ; i++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read sequence row %d: %w", i, err)
		}

		rec := Record{
			Index:  i,
			Values: make(map[channel.Slot]string, len(slots)),
		}

		cells := row[1:]
		if withPPM {
			rec.PPM = cells[0]
			cells = cells[1:]
		}
		for j, slot := range slots {
			rec.Values[slot] = cells[j]
		}

		duration, err := strconv.ParseFloat(row[len(row)-1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("bad duration in sequence row %d: %w", i, err)
		}
		rec.Duration = duration

		records = append(records, rec)
	}

	return records, slots, nil
}

func knownSlot(slot channel.Slot) bool {
	for _, s := range channel.Slots(4) {
		if s == slot {
			return true
		}
	}
	return false
}
