package auth

// Compares reports how many bcrypt comparisons the hasher has run.
func (h *PasswordHasher) Compares() int64 {
	return h.compares.Load()
}
