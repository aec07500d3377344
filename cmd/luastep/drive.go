package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wudi/luastep/config"
	"github.com/wudi/luastep/vm"
)

// driveToResult steps an executor to completion (or a pause the demo
// driver doesn't know how to resume), logging each step's fuel spend and
// mode at debug level the way a production step loop would instrument
// itself (spec.md §6's executor is embedder-driven; this is one embedder).
func driveToResult(log zerolog.Logger, tf config.Tariffs, fn *vm.Function, args []vm.Value) ([]vm.Value, error) {
	var result []vm.Value
	var callErr error

	err := vm.Enter(func(ctx *vm.Context) error {
		ex, err := vm.StartExecutor(ctx, fn, args)
		if err != nil {
			return err
		}
		ex.SetTariffs(tf.ToVM())

		budget := vm.NewFuel(int32(tf.VMGranularity) * 64)
		for {
			paused := ex.Step(ctx, budget)
			log.Debug().
				Str("mode", ex.Mode().String()).
				Int32("fuel_remaining", budget.Remaining()).
				Bool("paused", paused).
				Msg("executor step")
			if paused {
				break
			}
			budget.Refill(int32(tf.VMGranularity) * 64)
		}

		switch ex.Mode() {
		case vm.ModeResult:
			vals, terr := vm.ExecutorTakeResult(ex, ctx, func(vs []vm.Value) ([]vm.Value, error) { return vs, nil })
			result, callErr = vals, terr
		case vm.ModeSuspended:
			return fmt.Errorf("computation yielded and the demo driver does not resume it")
		default:
			return fmt.Errorf("executor paused in unexpected mode %s", ex.Mode())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, callErr
}
