package store

// Offer sends snap on a buffered channel, dropping an older snapshot the receiver has not taken yet.
// The caller must be the only sender on ch.
func Offer(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
