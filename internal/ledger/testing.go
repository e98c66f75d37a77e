package ledger

// SeedBalance is a test helper that seeds the balance for an account when using the in-memory store.
func SeedBalance(s Store, code string, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[code] = amount
	}
}
