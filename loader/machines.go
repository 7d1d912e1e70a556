package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nathoo/fablecore/types"
)

// readMachineFile decodes every YAML document in path as a machine
// definition with its bindings. Unknown fields are rejected.
func readMachineFile(path string) ([]types.MachineDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return decodeMachines(f, filepath.Base(path))
}

func decodeMachines(r io.Reader, name string) ([]types.MachineDef, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []types.MachineDef
	for i := 1; ; i++ {
		var def types.MachineDef
		err := dec.Decode(&def)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s document %d: %w", name, i, err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("decoding %s document %d: machine id is required", name, i)
		}
		out = append(out, def)
	}
}
