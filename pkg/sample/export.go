package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/itohio/gogmc/pkg/channel"
)

// WriteCSV exports a history as flat CSV: an RFC 3339 timestamp followed
// by one flow column per slot. Failed readings export as empty cells.
func WriteCSV(w io.Writer, slots []channel.Slot, samples []Sample) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(slots)+1)
	header = append(header, "time")
	for _, slot := range slots {
		header = append(header, string(slot)+"_sccm")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	row := make([]string, len(header))
	for i, s := range samples {
		row[0] = s.Timestamp.Format(time.RFC3339)
		for j, slot := range slots {
			if v := s.Flow(slot); math.IsNaN(v) {
				row[j+1] = ""
			} else {
				row[j+1] = strconv.FormatFloat(v, 'f', 2, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write export row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
