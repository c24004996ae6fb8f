package host

import (
	"time"

	"go.uber.org/zap"

	"github.com/covenant-lang/covenant/internal/vm"
)

// MaxSleep is the hard cap on time.sleep; longer requests are clamped.
const MaxSleep = 60_000 * time.Millisecond

// TimeModule exposes clock access and bounded sleeping. A sleep fully
// blocks the VM; that is the documented host-call blocking model.
type TimeModule struct {
	logger *zap.Logger
}

// NewTimeModule creates the time host module
func NewTimeModule(logger *zap.Logger) *TimeModule {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeModule{logger: logger}
}

// Name implements vm.HostModule
func (t *TimeModule) Name() string { return "time" }

// Call implements vm.HostModule
func (t *TimeModule) Call(method string, args []vm.Value, kwargs map[string]vm.Value) (vm.Value, error) {
	switch method {
	case "now":
		return vm.Int(time.Now().UnixMilli()), nil

	case "sleep":
		if len(args) != 1 || args[0].Kind != vm.KindInt {
			return vm.Null(), &vm.ModuleError{Module: t.Name(), Method: method, Detail: "expects milliseconds as Int"}
		}
		ms := args[0].I
		if ms < 0 {
			ms = 0
		}
		d := time.Duration(ms) * time.Millisecond
		if d > MaxSleep {
			t.logger.Warn("sleep clamped",
				zap.Int64("requested_ms", ms),
				zap.Duration("cap", MaxSleep))
			d = MaxSleep
		}
		time.Sleep(d)
		return vm.Null(), nil

	default:
		return vm.Null(), &vm.ModuleError{Module: t.Name(), Method: method, Detail: "unknown method"}
	}
}
