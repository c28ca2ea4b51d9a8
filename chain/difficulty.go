package chain

import (
	"math/big"
	"time"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// NumBlocksRetarget is how often (in blocks) the difficulty retargets.
const NumBlocksRetarget = 100

// TargetBlockInterval is the desired time between blocks.
const TargetBlockInterval = 5 * time.Minute

// ShouldRetarget reports whether height is a retarget boundary: every
// NumBlocksRetarget blocks, measured as absolute height since genesis
// (spec.md's Open Question #2, resolved in SPEC_FULL.md's EXP-3).
func ShouldRetarget(height int) bool {
	return height > 0 && height%NumBlocksRetarget == 0
}

// RetargetDifficulty implements the retarget formula: new_target =
// old_target * (actual_interval / expected_interval), clamped to
// [expected/4, expected*4].
func RetargetDifficulty(oldTarget crypto.Hash256, actualInterval time.Duration) crypto.Hash256 {
	expected := NumBlocksRetarget * TargetBlockInterval

	old := new(big.Int).SetBytes(oldTarget[:])
	newTarget := new(big.Int).Mul(old, big.NewInt(int64(actualInterval)))
	newTarget.Div(newTarget, big.NewInt(int64(expected)))

	minTarget := new(big.Int).Div(old, big.NewInt(4))
	maxTarget := new(big.Int).Mul(old, big.NewInt(4))
	if newTarget.Cmp(minTarget) < 0 {
		newTarget = minTarget
	}
	if newTarget.Cmp(maxTarget) > 0 {
		newTarget = maxTarget
	}

	var out crypto.Hash256
	b := newTarget.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// currentDifficulty computes the target a block at cs's current tip height
// must satisfy: the tip's own target, unless the tip height is itself a
// retarget boundary, in which case the target is recomputed from the
// actual interval spanning the last NumBlocksRetarget blocks.
func (cs *ChainStore) currentDifficulty() crypto.Hash256 {
	height := len(cs.Main) - 1
	tipTarget := cs.Main[height].Header.DifficultyTarget
	if !ShouldRetarget(height) {
		return tipTarget
	}

	first := cs.Main[height-NumBlocksRetarget].Header.Timestamp
	last := cs.Main[height].Header.Timestamp
	actual := time.Duration(int64(last)-int64(first)) * time.Second
	return RetargetDifficulty(tipTarget, actual)
}
