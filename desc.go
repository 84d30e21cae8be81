package ccsynth

// desc.go holds structs, methods, and data structures supporting the
// construction of and access to serialized descriptions of NPU
// interconnect topologies.  A description can be read from or written
// to yaml or json, selected by file extension, or read from the csv
// exchange format the topology generators emit.

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// A LinkDesc describes one directed link of a topology
type LinkDesc struct {
	Src       int     `json:"src" yaml:"src"`
	Dest      int     `json:"dest" yaml:"dest"`
	Latency   float64 `json:"latency" yaml:"latency"`
	Bandwidth float64 `json:"bandwidth" yaml:"bandwidth"`
}

// A TopoDesc holds a serializable description of a topology: the NPU
// count and one record per directed link.  Producers that want a
// bidirectional connection list both directions.
type TopoDesc struct {
	// Name is an identifier for this topology
	Name string `json:"name" yaml:"name"`

	NpusCount int `json:"npuscount" yaml:"npuscount"`

	Links []LinkDesc `json:"links" yaml:"links"`
}

// CreateTopoDesc is an initialization constructor.
// Its output struct has methods for integrating data.
func CreateTopoDesc(name string) *TopoDesc {
	td := new(TopoDesc)
	td.Name = name
	td.Links = make([]LinkDesc, 0)
	return td
}

// AddLink appends one directed link record
func (td *TopoDesc) AddLink(src, dest int, latency, bandwidth float64) {
	td.Links = append(td.Links, LinkDesc{Src: src, Dest: dest, Latency: latency, Bandwidth: bandwidth})
}

// WriteToFile stores the TopoDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (td *TopoDesc) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*td)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*td, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	err := f.Close()
	if err != nil {
		panic(err)
	}

	return werr
}

// ReadTopoDesc deserializes a byte slice holding a representation of a
// TopoDesc struct.  If the input argument of dict (those bytes) is
// empty, the file whose name is given is read to acquire them.  A
// deserialized representation is returned, or an error if one is
// generated from a file read or the deserialization.
func ReadTopoDesc(filename string, useYAML bool, dict []byte) (*TopoDesc, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := TopoDesc{}

	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}

// ReadTopoCSV parses the csv exchange format: the first line holds the
// NPU count, the second is a header, and every following line holds
// src,dest,latency,bandwidth describing one directed link
func ReadTopoCSV(filename string) (*TopoDesc, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening topology file %s", filename)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "reading topology file %s", filename)
	}
	if len(rows) < 2 {
		return nil, errors.Errorf("topology file %s lacks the count and header lines", filename)
	}

	npusCount, err := strconv.Atoi(strings.TrimSpace(rows[0][0]))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing NPUs count %q", rows[0][0])
	}

	td := CreateTopoDesc(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	td.NpusCount = npusCount

	// rows[1] is the header
	for idx, row := range rows[2:] {
		line := idx + 3
		if len(row) != 4 {
			return nil, errors.Errorf("line %d of %s has %d fields, want 4", line, filename, len(row))
		}
		src, serr := strconv.Atoi(strings.TrimSpace(row[0]))
		dest, derr := strconv.Atoi(strings.TrimSpace(row[1]))
		latency, lerr := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		bandwidth, berr := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		for _, perr := range []error{serr, derr, lerr, berr} {
			if perr != nil {
				return nil, errors.Wrapf(perr, "parsing line %d of %s", line, filename)
			}
		}
		td.AddLink(src, dest, latency, bandwidth)
	}
	return td, nil
}

// BuildTopology materializes the description into a Topology.  Each
// link record connects one direction.
func (td *TopoDesc) BuildTopology() *Topology {
	topo := CreateTopology()
	topo.ConnectFromAdjacency(td.Links, td.NpusCount)
	return topo
}

// RingTopoDesc describes a bidirectional ring: consecutive NPUs joined
// both ways with uniform latency (ns) and bandwidth (GB/s), last joined
// back to first
func RingTopoDesc(npusCount int, latency, bandwidth float64) *TopoDesc {
	if npusCount < 2 {
		panic(errors.Errorf("ring needs at least 2 NPUs, got %d", npusCount))
	}

	td := CreateTopoDesc("ring_" + strconv.Itoa(npusCount))
	td.NpusCount = npusCount
	for npu := 0; npu < npusCount-1; npu++ {
		td.AddLink(npu, npu+1, latency, bandwidth)
		td.AddLink(npu+1, npu, latency, bandwidth)
	}
	// close the ring; with 2 NPUs the single pair already does
	if npusCount > 2 {
		td.AddLink(npusCount-1, 0, latency, bandwidth)
		td.AddLink(0, npusCount-1, latency, bandwidth)
	}
	return td
}

// MeshTopoDesc describes a fully connected mesh layered over a ring:
// ring neighbors at the full bandwidth, every other pair both ways at
// the bandwidth reduced by the given factor
func MeshTopoDesc(npusCount int, latency, bandwidth, slowdown float64) *TopoDesc {
	if npusCount < 2 {
		panic(errors.Errorf("mesh needs at least 2 NPUs, got %d", npusCount))
	}
	if !(slowdown > 0) {
		panic(errors.Errorf("non-positive slowdown %f", slowdown))
	}

	td := CreateTopoDesc("mesh_" + strconv.Itoa(npusCount))
	td.NpusCount = npusCount
	for npu := 0; npu < npusCount-1; npu++ {
		td.AddLink(npu, npu+1, latency, bandwidth)
		td.AddLink(npu+1, npu, latency, bandwidth)
	}
	if npusCount > 2 {
		td.AddLink(npusCount-1, 0, latency, bandwidth)
		td.AddLink(0, npusCount-1, latency, bandwidth)
	}
	for src := 0; src < npusCount; src++ {
		for dest := src + 1; dest < npusCount; dest++ {
			if dest-src == 1 || (src == 0 && dest == npusCount-1) {
				continue
			}
			td.AddLink(src, dest, latency, bandwidth/slowdown)
			td.AddLink(dest, src, latency, bandwidth/slowdown)
		}
	}
	return td
}
