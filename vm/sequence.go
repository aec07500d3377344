package vm

// Sequence is a multi-step native computation that can suspend across
// executor steps, call into Lua, yield, resume another thread, and
// handle its own errors (spec.md §4.4).
type Sequence interface {
	Poll(ctx *Context, fuel *Fuel, stack *Stack) (SequencePoll, error)
	Error(ctx *Context, fuel *Fuel, err error, stack *Stack) (SequencePoll, error)
}

// SequencePollKind tags the arm of SequencePoll.
type SequencePollKind byte

const (
	SeqPending SequencePollKind = iota
	SeqReturn
	SeqYield
	SeqCall
	SeqResume
)

// SequencePoll is what Sequence.Poll/Error produces each step. IsTail on
// the Yield/Call/Resume arms means the sequence itself does not resume: no
// then-continuation is pushed.
type SequencePoll struct {
	Kind SequencePollKind

	YieldToThread *Thread
	IsTail        bool

	CallFunction *Function

	ResumeThread *Thread
}

func Pending() SequencePoll { return SequencePoll{Kind: SeqPending} }
func SeqReturnPoll() SequencePoll { return SequencePoll{Kind: SeqReturn} }

func SeqYieldPoll(toThread *Thread, isTail bool) SequencePoll {
	return SequencePoll{Kind: SeqYield, YieldToThread: toThread, IsTail: isTail}
}

func SeqCallPoll(fn *Function, isTail bool) SequencePoll {
	return SequencePoll{Kind: SeqCall, CallFunction: fn, IsTail: isTail}
}

func SeqResumePoll(thread *Thread, isTail bool) SequencePoll {
	return SequencePoll{Kind: SeqResume, ResumeThread: thread, IsTail: isTail}
}

// toCallbackReturn maps a SequencePoll to the CallbackReturn protocol a
// Sequence frame is resolved through (spec.md §4.4), given the sequence
// that produced it (re-pushed on Pending, used as the continuation when
// IsTail is false). The caller supplies the frame's bottom to route.
func (p SequencePoll) toCallbackReturn(self Sequence) CallbackReturn {
	switch p.Kind {
	case SeqPending:
		return SequenceReturn(self)
	case SeqReturn:
		return Return()
	case SeqYield:
		var then Sequence
		if !p.IsTail {
			then = self
		}
		return Yield(p.YieldToThread, then)
	case SeqCall:
		var then Sequence
		if !p.IsTail {
			then = self
		}
		return Call(p.CallFunction, then)
	case SeqResume:
		var then Sequence
		if !p.IsTail {
			then = self
		}
		return Resume(p.ResumeThread, then)
	default:
		panic("invalid SequencePoll kind")
	}
}
