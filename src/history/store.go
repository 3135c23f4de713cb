package history

// Store records finalized rounds.
type Store interface {
	CacheSize() int
	SetRound(round *Round) error
	GetRound(index int) (*Round, error)
	LastRound() int
	Close() error
}
