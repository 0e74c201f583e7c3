// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import "time"

// similarTimeOffset is the largest peer clock offset that is considered to
// confirm the local clock when the network median is out of bounds.
const similarTimeOffset = 5 * time.Minute

// medianTimeOffset returns the median of the reported peer clock offsets.
// For an even number of offsets it is the mean of the two middle offsets
// truncated to whole seconds.
func (a *AddrManager) medianTimeOffset() time.Duration {
	num := a.timeOffsets.Len()
	mid := (num - 1) / 2

	var middle [2]time.Duration
	i := 0
	a.timeOffsets.Ascend(func(p *Peer) bool {
		if i >= mid {
			middle[i-mid] = p.timeOffset
		}
		i++
		return i <= mid+1
	})
	if num%2 == 1 {
		return middle[0]
	}
	sum := int64(middle[0]/time.Second) + int64(middle[1]/time.Second)
	return time.Duration(sum/2) * time.Second
}

// localClockConfirmed returns whether any tracked peer reported a clock that
// differs from the local clock, but by no more than similarTimeOffset.
func (a *AddrManager) localClockConfirmed() bool {
	for _, p := range a.peers {
		if !p.timeOffsetSet || p.timeOffset == 0 {
			continue
		}
		if p.timeOffset >= -similarTimeOffset &&
			p.timeOffset <= similarTimeOffset {
			return true
		}
	}
	return false
}

// adjustTime recomputes the network time offset from the reported peer clock
// offsets.  It must be called whenever the set of reported offsets changes.
//
// The median offset is trusted when it is within the maximum drift.
// Otherwise the local clock is used as is, and when no peer confirms the local
// clock either the bad time callback is invoked.  The callback fires once
// until the offsets recover.
func (a *AddrManager) adjustTime() {
	if a.timeOffsets.Len() == 0 {
		a.badTimeSignaled = false
		a.setNetworkTimeOffset(0)
		return
	}

	median := a.medianTimeOffset()
	if median >= -a.maxTimeDrift && median <= a.maxTimeDrift {
		a.badTimeSignaled = false
		a.setNetworkTimeOffset(median)
		return
	}

	a.setNetworkTimeOffset(0)
	if a.localClockConfirmed() {
		log.Debugf("Median peer time offset %v exceeds %v, using local "+
			"clock", median, a.maxTimeDrift)
		a.badTimeSignaled = false
		return
	}
	if a.badTimeSignaled {
		return
	}
	a.badTimeSignaled = true
	log.Warnf("Median peer time offset %v exceeds %v and no peer agrees "+
		"with the local clock.  Please check your date and time are "+
		"correct!", median, a.maxTimeDrift)
	if a.onBadTime != nil {
		a.onBadTime(median)
	}
}

func (a *AddrManager) setNetworkTimeOffset(offset time.Duration) {
	old := time.Duration(a.networkTimeOffset.Swap(int64(offset)))
	if old != offset {
		log.Debugf("New network time offset: %v", offset)
	}
}

// NetworkTimeOffset returns the correction applied to the local clock.
//
// This function is safe for concurrent access.
func (a *AddrManager) NetworkTimeOffset() time.Duration {
	return time.Duration(a.networkTimeOffset.Load())
}

// GetCurrentTimeOffset is an alias of NetworkTimeOffset.
func (a *AddrManager) GetCurrentTimeOffset() time.Duration {
	return a.NetworkTimeOffset()
}

// NetworkTime returns the local clock, with one second precision, corrected
// by the network time offset.
//
// This function is safe for concurrent access.
func (a *AddrManager) NetworkTime() time.Time {
	now := time.Unix(time.Now().Unix(), 0)
	return now.Add(a.NetworkTimeOffset())
}
