package types

// priorityToWeight reproduces Linux CFS's sched_prio_to_weight table: a
// fixed bijection from nice-style priority in [-20, 19] to a positive
// integer weight, reference weight 1024 at priority 0.
var priorityToWeight = map[int]uint64{
	-20: 88761, -19: 71755, -18: 56483, -17: 46273, -16: 36291,
	-15: 29154, -14: 23254, -13: 18705, -12: 14949, -11: 11916,
	-10: 9548, -9: 7620, -8: 6100, -7: 4904, -6: 3906,
	-5: 3121, -4: 2501, -3: 1991, -2: 1586, -1: 1277,
	0: 1024,
	1: 820, 2: 655, 3: 526, 4: 423, 5: 335,
	6: 272, 7: 215, 8: 172, 9: 137, 10: 110,
	11: 87, 12: 70, 13: 56, 14: 45, 15: 36,
	16: 29, 17: 23, 18: 18, 19: 15,
}

// ReferenceWeight is the weight assigned to priority 0.
const ReferenceWeight uint64 = 1024

// WeightForPriority looks up the weight for a nice-style priority.
// Returns ErrNotFound if priority is outside [-20, 19].
func WeightForPriority(priority int) (uint64, error) {
	w, ok := priorityToWeight[priority]
	if !ok {
		return 0, ErrNotFound
	}
	return w, nil
}
