package whisper

// Known model names ordered from cheapest to most capable.
const (
	ModelTiny   = "tiny"
	ModelBase   = "base"
	ModelSmall  = "small"
	ModelMedium = "medium"
	ModelLarge  = "large-v3"
)

const gib = 1024 * 1024 * 1024

// PickModel chooses an engine model from media duration and free RAM. It is
// a pure decision table: same inputs, same answer, no probing.
//
// RAM bounds the largest model that can load at all; very long inputs step
// down one size so a single job does not monopolize the machine for hours.
func PickModel(durationSeconds float64, freeRAMBytes uint64) string {
	model := largestForRAM(freeRAMBytes)
	if durationSeconds > 2*3600 {
		model = stepDown(model)
	}
	return model
}

func largestForRAM(freeRAMBytes uint64) string {
	switch {
	case freeRAMBytes >= 10*gib:
		return ModelLarge
	case freeRAMBytes >= 5*gib:
		return ModelMedium
	case freeRAMBytes >= 3*gib:
		return ModelSmall
	case freeRAMBytes >= 3*gib/2:
		return ModelBase
	default:
		return ModelTiny
	}
}

func stepDown(model string) string {
	switch model {
	case ModelLarge:
		return ModelMedium
	case ModelMedium:
		return ModelSmall
	case ModelSmall:
		return ModelBase
	default:
		return ModelTiny
	}
}
