package consortium

// SeedBank is a test helper that installs a bank record directly when using
// the in-memory ledger, bypassing the admin-only path.
func SeedBank(l Ledger, bank Bank) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.banks[bank.Address] = bank
	}
}

// SeedBanks installs n eligible banks named by the provided addresses.
func SeedBanks(l Ledger, addresses ...string) {
	for _, addr := range addresses {
		SeedBank(l, Bank{Address: addr, Name: addr, Eligible: true})
	}
}
