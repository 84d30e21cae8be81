package ccsynth

// trace.go holds the TraceManager, used to gather a record of every
// link-chunk match a synthesis run commits, for inspection after the run

import (
	"encoding/json"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// MatchTrace records one committed match.  Beam is zero outside the
// beam engine.
type MatchTrace struct {
	Time  Time `json:"time" yaml:"time"`
	Beam  int  `json:"beam" yaml:"beam"`
	Chunk int  `json:"chunk" yaml:"chunk"`
	Src   int  `json:"src" yaml:"src"`
	Dest  int  `json:"dest" yaml:"dest"`
	Start Time `json:"start" yaml:"start"`
}

// NameType is an entry in a dictionary created for a trace that maps
// object id numbers to a (name,type) pair
type NameType struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TraceManager gathers information about a synthesis run.  By testing
// the InUse flag we can inhibit the activity of gathering a trace when
// we don't want it, while embedding calls to its methods everywhere we
// need them when it is.
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each objID
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all match records for this experiment, keyed by beam index
	Traces map[int][]MatchTrace `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  It saves the name of the
// experiment and a flag indicating whether the trace manager is active.
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]MatchTrace)
	return tm
}

// Active tells the caller whether the trace manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// AddMatchTrace stores the record of one committed match
func (tm *TraceManager) AddMatchTrace(beam int, trace MatchTrace) {
	if !tm.InUse {
		return
	}

	_, present := tm.Traces[beam]
	if !present {
		tm.Traces[beam] = make([]MatchTrace, 0)
	}
	tm.Traces[beam] = append(tm.Traces[beam], trace)
}

// AddName is used to add an element to the id -> (name,type) dictionary
// for the trace file
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	if tm.InUse {
		_, present := tm.NameByID[id]
		if present {
			panic("duplicated id in AddName")
		}
		tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	}
}

// WriteToFile stores the TraceManager struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) bool {
	if !tm.InUse {
		return false
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*tm)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
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

	return true
}
