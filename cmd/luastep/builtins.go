package main

import (
	"fmt"
	"strconv"

	"github.com/wudi/luastep/vm"
)

// builtins is the toy native-function registry the demo driver resolves
// names against. The bytecode compiler and opcode interpreter are out of
// scope (spec.md §1) so there is no Lua source frontend here: the CLI
// drives the executor directly against callbacks, the same protocol any
// embedder's own native library would use.
var builtins = map[string]*vm.Function{}

func registerBuiltin(name string, fn func(ctx *vm.Context, fuel *vm.Fuel, stack *vm.Stack) (vm.CallbackReturn, error)) {
	builtins[name] = vm.FunctionFromCallback(&vm.CallbackFunc{FnName: name, Fn: fn})
}

func init() {
	registerBuiltin("echo", func(ctx *vm.Context, fuel *vm.Fuel, stack *vm.Stack) (vm.CallbackReturn, error) {
		return vm.Return(), nil
	})

	registerBuiltin("sum", func(ctx *vm.Context, fuel *vm.Fuel, stack *vm.Stack) (vm.CallbackReturn, error) {
		var total int64
		for i := 0; i < stack.Len(); i++ {
			n, _ := stack.Get(i).AsInt()
			total += n
		}
		stack.Replace([]vm.Value{vm.Int(total)})
		return vm.Return(), nil
	})

	registerBuiltin("print", func(ctx *vm.Context, fuel *vm.Fuel, stack *vm.Stack) (vm.CallbackReturn, error) {
		for i := 0; i < stack.Len(); i++ {
			if i > 0 {
				fmt.Print("\t")
			}
			fmt.Print(stack.Get(i).String())
		}
		fmt.Println()
		stack.Replace(nil)
		return vm.Return(), nil
	})
}

// parseArg turns a CLI/REPL token into a vm.Value: int, float, or string
// fallback, mirroring the loose coercion a shell-driven demo needs.
func parseArg(tok string) vm.Value {
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return vm.Int(i)
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return vm.Num(f)
	}
	return vm.NewString(tok)
}
