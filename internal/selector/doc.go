// Package selector orders clips onto the cut slots of a run.
//
// Two strategies are supported. "weighted" draws clips at random with
// probability proportional to their tag weight divided by one plus their
// usage count. "round_robin" cycles through tags and takes the least recently
// used clip carrying the current tag. Both honor a cooldown window: a clip is
// not reused until at least Cooldown other selections have been made, seeded
// with the usage history of previous runs. When the pool is too small for the
// window, the window shrinks to the pool size minus one and a warning is
// recorded.
//
// All randomness comes from the caller's *rand.Rand so a fixed seed replays
// the same plan.
package selector
