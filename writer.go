package ccsynth

// writer.go holds the serialization of a SynthesisResult to the csv
// exchange format consumed by downstream analysis scripts

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// WriteCSV stores the result to the file whose name is given.  The
// first row carries the collective time in picoseconds, the second is a
// column header, and every row after it is one committed transmission,
// listed per destination NPU and ingress link in arrival order:
//
//	collective_time_ps,<time>
//	npu,src,chunk,arrival_ps,start_ps
//	<rows>
//
// The file is written only for a finalized result.
func (sr *SynthesisResult) WriteCSV(filename string) error {
	if sr.collectiveTime == 0 {
		return errors.New("result not finalized, refusing to write")
	}

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating result file %s", filename)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	if err := writer.Write([]string{"collective_time_ps", strconv.FormatInt(int64(sr.collectiveTime), 10)}); err != nil {
		return errors.Wrapf(err, "writing result file %s", filename)
	}
	if err := writer.Write([]string{"npu", "src", "chunk", "arrival_ps", "start_ps"}); err != nil {
		return errors.Wrapf(err, "writing result file %s", filename)
	}

	for npu := 0; npu < sr.npusCount; npu++ {
		nr := sr.npuResults[npu]
		for _, src := range nr.IngressPeers() {
			for _, ev := range nr.IngressEvents(src) {
				row := []string{
					strconv.Itoa(npu),
					strconv.Itoa(src),
					strconv.Itoa(ev.Chunk),
					strconv.FormatInt(int64(ev.Arrival), 10),
					strconv.FormatInt(int64(ev.Start), 10),
				}
				if err := writer.Write(row); err != nil {
					return errors.Wrapf(err, "writing result file %s", filename)
				}
			}
		}
	}

	writer.Flush()
	return errors.Wrapf(writer.Error(), "writing result file %s", filename)
}
