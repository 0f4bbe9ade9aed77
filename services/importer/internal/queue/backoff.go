package queue

import "time"

func backoffDelay(numDelivered uint64) time.Duration {
	// 1st failure -> 2s, 2nd -> 4s, 3rd -> 8s ... capped at 2m
	attempt := min(max(int(numDelivered), 1), 7)
	sec := 2 << (attempt - 1)
	return time.Duration(min(sec, 120)) * time.Second
}
