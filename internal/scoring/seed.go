package scoring

import "hash/fnv"

// DeriveSeed mixes a base seed with stream identifiers into an independent seed.
// The same inputs always give the same seed, so parallel work split into fixed
// chunks reproduces exactly regardless of scheduling.
func DeriveSeed(base int64, parts ...uint64) int64 {
	x := uint64(base)
	for _, p := range parts {
		x = splitmix(x ^ splitmix(p+0x9e3779b97f4a7c15))
	}
	return int64(splitmix(x))
}

// LabelSeed derives a seed for a named stream such as "bootstrap"
func LabelSeed(base int64, label string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	return DeriveSeed(base, h.Sum64())
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
