// Package report serialises backtest results to their documented JSON form
// and reads them back
package report

import (
	"encoding/json"
	"os"

	"github.com/thrasher-corp/backsim/common"
	"github.com/thrasher-corp/backsim/common/file"
	"github.com/thrasher-corp/backsim/engine"
	"github.com/thrasher-corp/backsim/log"
)

// Marshal renders a result in the documented report format
func Marshal(r *engine.Result) ([]byte, error) {
	if r == nil {
		return nil, common.ErrNilArguments
	}
	return json.MarshalIndent(r, "", " ")
}

// Unmarshal parses a previously written report
func Unmarshal(data []byte) (*engine.Result, error) {
	r := new(engine.Result)
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Write stores a result at path atomically
func Write(r *engine.Result, path string) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	if err = file.WriteSafe(path, data); err != nil {
		return err
	}
	log.Infof(log.Report, "wrote backtest report to %v", path)
	return nil
}

// Read loads a result from path
func Read(path string) (*engine.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
