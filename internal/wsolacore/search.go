package wsolacore

// similarityEpsilon is a FLT_MIN-sized guard, preventing division by zero
// and treating near-zero energy as silence.
const similarityEpsilon float32 = 1.1754944e-38

// Search returns the offset k* in [0, NumCandidateBlocks) inside
// SearchBlock whose window best matches TargetBlock by energy-normalized
// cross-correlation, biased toward the offset nearest the projected center
// of the search interval.
//
// outputTime and searchBlockIndex are used only to compute that projected
// center; TargetBlock and SearchBlock must already be filled.
func (c *Core) Search(outputTime float64, searchBlockIndex int) int {
	n := c.OLAWindowSize
	w := c.OLAWindow
	numCandidates := c.NumCandidateBlocks

	if numCandidates <= 0 {
		return 0
	}

	// Target energy E_t (constant over k).
	var targetEnergy float32
	for ch := 0; ch < c.Channels; ch++ {
		target := c.TargetBlock[ch]
		for i := 0; i < n; i++ {
			v := w[i] * target[i]
			targetEnergy += v * v
		}
	}

	perChannelEnergy := make([]float32, c.Channels)
	var bestScore float32
	bestK := 0
	haveBest := false
	var maxEnergy float32

	kCenter := outputTime - float64(searchBlockIndex) - (float64(n)/2 - 1)

	for k := 0; k < numCandidates; k++ {
		var dot float32
		var energy float32
		for ch := 0; ch < c.Channels; ch++ {
			target := c.TargetBlock[ch]
			cand := c.SearchBlock[ch][k : k+n]

			var chDot float32
			var chEnergy float32
			if k == 0 {
				for i := 0; i < n; i++ {
					wv := w[i] * cand[i]
					chDot += w[i] * target[i] * cand[i]
					chEnergy += wv * wv
				}
			} else {
				prevEnergy := perChannelEnergy[ch]
				leaving := w[0] * c.SearchBlock[ch][k-1]
				entering := w[n-1] * c.SearchBlock[ch][k+n-1]
				chEnergy = prevEnergy - leaving*leaving + entering*entering
				for i := 0; i < n; i++ {
					chDot += w[i] * target[i] * cand[i]
				}
			}
			if chEnergy < 0 {
				chEnergy = 0
			}
			perChannelEnergy[ch] = chEnergy
			c.EnergyCandidateBlocks[ch][k] = chEnergy
			dot += chDot
			energy += chEnergy
		}
		if energy > maxEnergy {
			maxEnergy = energy
		}

		var score float32
		if dot > 0 {
			score = (dot * dot) / (targetEnergy*energy + similarityEpsilon)
		}

		dist := float64(k) - kCenter
		if dist < 0 {
			dist = -dist
		}
		centerWeight := 1 - dist/float64(numCandidates)
		if centerWeight < 0 {
			centerWeight = 0
		}
		score *= float32(centerWeight)

		if !haveBest || score > bestScore {
			bestScore = score
			bestK = k
			haveBest = true
		}
	}

	if maxEnergy < similarityEpsilon {
		center := int(kCenter + 0.5)
		if center < 0 {
			center = 0
		}
		if center > numCandidates-1 {
			center = numCandidates - 1
		}
		return center
	}

	return bestK
}
