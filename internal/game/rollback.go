package game

// The crisis rollback buffer holds full ledger snapshots. It is seeded with
// the pre-crisis ledger, grows by one entry per survived month and is
// emptied when the crisis ends or a new one starts.

func (s *State) resetRollback(before *Ledger) {
	s.Rollback = []Ledger{*before.Clone()}
}

func (s *State) pushRollback(l *Ledger) {
	s.Rollback = append(s.Rollback, *l.Clone())
}

// popRollback removes the newest snapshot and returns a private copy of it.
func (s *State) popRollback() (*Ledger, bool) {
	n := len(s.Rollback)
	if n == 0 {
		return nil, false
	}
	snap := s.Rollback[n-1]
	s.Rollback = s.Rollback[:n-1]
	return snap.Clone(), true
}

func (s *State) clearRollback() {
	s.Rollback = nil
}

// RollbackDepth reports how many months can still be undone.
func (s State) RollbackDepth() int {
	return len(s.Rollback)
}
