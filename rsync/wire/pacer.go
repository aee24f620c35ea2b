package wire

import "time"

// pace blocks, if necessary, so that the rolling window of per-second
// upload byte counts plus the pending n bytes does not exceed the
// configured limit. Only the blocking write path (writeRaw, used by
// FlushWriteBuffer) applies pacing; TryFlushWriteBuffer stays
// non-blocking so it can interleave with reads without deadlocking, so
// bandwidth limiting on that path is approximated by the periodic
// blocking flushes the session driver issues between try-flush ticks.
func (s *Stream) pace(n int) error {
	for {
		if err := s.checkCancelled(); err != nil {
			return err
		}
		now := time.Now().Unix()
		s.rollBuckets(now)
		var sum int64
		populated := 0
		for _, b := range s.uploadBuckets {
			if b > 0 {
				sum += b
				populated++
			}
		}
		if populated == 0 {
			return nil
		}
		avg := sum / int64(populated)
		if avg+int64(n) <= s.uploadLimitBytesPerSec {
			return nil
		}
		sleep := time.Second
		time.Sleep(sleep)
	}
}

func (s *Stream) rollBuckets(now int64) {
	if s.bucketStartSec == 0 {
		s.bucketStartSec = now
	}
	shift := now - s.bucketStartSec
	if shift <= 0 {
		return
	}
	n := len(s.uploadBuckets)
	if shift >= int64(n) {
		for i := range s.uploadBuckets {
			s.uploadBuckets[i] = 0
		}
	} else {
		copy(s.uploadBuckets, s.uploadBuckets[shift:])
		for i := n - int(shift); i < n; i++ {
			s.uploadBuckets[i] = 0
		}
	}
	s.bucketStartSec = now
}

func (s *Stream) recordBucket(n int) {
	if len(s.uploadBuckets) == 0 {
		return
	}
	s.rollBuckets(time.Now().Unix())
	last := len(s.uploadBuckets) - 1
	s.uploadBuckets[last] += int64(n)
}
