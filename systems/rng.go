package systems

// hash3 mixes three integers into a well-distributed 32-bit value. Used
// where kernels need per-particle randomness without sharing an RNG.
func hash3(a, b, c uint32) uint32 {
	h := a*374761393 + b*668265263 + c*1013904223
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return h
}

// hashUnit maps hash3 to [0, 1).
func hashUnit(a, b, c uint32) float32 {
	return float32(hash3(a, b, c)&0x00FFFFFF) / float32(0x01000000)
}

// PoolSeed derives the RNG seed for an emitter's pool from the engine seed
// and the emitter's own seed. Handles never enter the mix so that removing
// and re-adding an equivalent emitter reproduces the same pool.
func PoolSeed(engineSeed, emitterSeed int64) int64 {
	h := uint64(engineSeed)*0x9E3779B97F4A7C15 ^ uint64(emitterSeed)
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33
	return int64(h)
}
