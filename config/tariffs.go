// Package config loads the executor's fuel tariffs from a YAML file, the
// way an embedder tunes cooperative scheduling granularity without a
// rebuild. The value domain (vm.Tariffs) stays free of a YAML dependency;
// this package is the only place that knows the on-disk shape.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wudi/luastep/vm"
)

// Tariffs is the YAML-serializable mirror of vm.Tariffs.
type Tariffs struct {
	PerStep       int32 `yaml:"per_step"`
	PerCallback   int32 `yaml:"per_callback"`
	PerSeqStep    int32 `yaml:"per_seq_step"`
	PerCall       int32 `yaml:"per_call"`
	PerItem       int32 `yaml:"per_item"`
	VMGranularity int   `yaml:"vm_granularity"`
}

// DefaultTariffs mirrors vm.DefaultTariffs so a written-out config file
// documents the built-in defaults.
func DefaultTariffs() Tariffs {
	d := vm.DefaultTariffs()
	return Tariffs{
		PerStep:       d.PerStep,
		PerCallback:   d.PerCallback,
		PerSeqStep:    d.PerSeqStep,
		PerCall:       d.PerCall,
		PerItem:       d.PerItem,
		VMGranularity: d.VMGranularity,
	}
}

// ToVM converts to the runtime type the executor actually consumes.
func (t Tariffs) ToVM() vm.Tariffs {
	return vm.Tariffs{
		PerStep:       t.PerStep,
		PerCallback:   t.PerCallback,
		PerSeqStep:    t.PerSeqStep,
		PerCall:       t.PerCall,
		PerItem:       t.PerItem,
		VMGranularity: t.VMGranularity,
	}
}

// Load reads tariffs from a YAML file. A missing file is not an error;
// the defaults are returned as-is, so an embedder need not ship a config
// file at all.
func Load(path string) (Tariffs, error) {
	t := DefaultTariffs()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, err
	}
	return t, nil
}
