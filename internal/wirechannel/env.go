package wirechannel

import (
	"os"
	"strconv"
	"strings"

	"github.com/dspace-group/veos-cosim/internal/logging"
)

// SpinCountFallbackChain resolves VEOS_COSIM_SPIN_COUNT for a given
// connection name/part/direction, following the original GetSpinCount's
// most-specific-first fallback: a fully-qualified var, then progressively
// less specific ones, then the bare VEOS_COSIM_SPIN_COUNT, then 0 (blocking
// read, no spin) if none are set. part and direction may be empty.
func SpinCountFallbackChain(name, part, direction string) int {
	candidates := make([]string, 0, 4)
	if name != "" {
		base := "VEOS_COSIM_SPIN_COUNT_" + name
		if part != "" {
			withPart := base + "." + part
			if direction != "" {
				candidates = append(candidates, withPart+"."+direction)
			}
			candidates = append(candidates, withPart)
		}
		candidates = append(candidates, base)
	}
	candidates = append(candidates, "VEOS_COSIM_SPIN_COUNT")

	for _, envVar := range candidates {
		v := strings.TrimSpace(os.Getenv(envVar))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logging.L().Warn("ignoring invalid spin count env var", "var", envVar, "value", v)
			continue
		}
		return n
	}
	return 0
}

// AffinityMask parses VEOS_COSIM_AFFINITY_MASK as a hex or decimal bitmask.
// The mask is intentionally not applied to any OS thread — affinity pinning
// is out of scope — but the parser is kept so the env contract matches the
// original, and callers can log what would have been requested.
func AffinityMask() (uint64, bool) {
	v := strings.TrimSpace(os.Getenv("VEOS_COSIM_AFFINITY_MASK"))
	if v == "" {
		return 0, false
	}
	base := 10
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v = v[2:]
		base = 16
	}
	mask, err := strconv.ParseUint(v, base, 64)
	if err != nil {
		logging.L().Warn("ignoring invalid VEOS_COSIM_AFFINITY_MASK", "value", v)
		return 0, false
	}
	return mask, true
}
