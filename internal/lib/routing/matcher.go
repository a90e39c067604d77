package routing

import (
	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
)

// ActiveInstruction returns the index of the first instruction whose
// interval contains closestIndex. When closestIndex is past every interval
// the last instruction is returned. Returns -1 only if there are no
// instructions.
func ActiveInstruction(closestIndex int, instructions []Instruction) int {
	return ActiveInstructionFrom(closestIndex, instructions, 0)
}

// ActiveInstructionFrom is ActiveInstruction with a floor: the search starts
// at instruction floor and never returns an earlier one. Callers tracking a
// moving position pass the previous result so noisy samples that project
// behind the current maneuver do not re-match a completed instruction.
func ActiveInstructionFrom(closestIndex int, instructions []Instruction, floor int) int {
	if len(instructions) == 0 {
		return -1
	}
	if floor < 0 {
		floor = 0
	}
	if floor >= len(instructions) {
		return len(instructions) - 1
	}

	for i := floor; i < len(instructions); i++ {
		inst := instructions[i]
		if inst.Contains(closestIndex) {
			return i
		}
		// Between intervals: keep the maneuver already under way
		if closestIndex < inst.IntervalStart {
			if i > floor {
				return i - 1
			}
			return i
		}
	}
	return len(instructions) - 1
}

// DistanceToNextManeuver returns the distance in meters from position to the
// start of the instruction after active. For the final instruction it is
// the remaining distance to the end of the route.
func DistanceToNextManeuver(position geo.Coordinate, points []geo.Coordinate, closestIndex int, instructions []Instruction, active int) float64 {
	if active < 0 || active >= len(instructions)-1 {
		return geo.RemainingDistance(position, points, closestIndex)
	}
	if closestIndex < 0 || closestIndex >= len(points) {
		return 0
	}

	next := instructions[active+1]
	return geo.Distance(position, points[closestIndex]) + geo.PathLength(points, closestIndex, next.IntervalStart)
}
