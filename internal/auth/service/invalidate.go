package service

import "github.com/lockboxhq/grantstore/internal/auth/domain"

// Invalidate returns a copy of the authorization with the slot holding
// tokenValue marked invalidated. The token and its expiry are left in
// place: invalidation is a logical flag, not deletion, so the token can
// still be looked up and reported as inactive. When no slot holds
// tokenValue the copy is unchanged.
//
// The input is treated as immutable; callers persist the returned record
// through the store.
func Invalidate(a domain.Authorization, tokenValue string) domain.Authorization {
	out := a.Clone()
	if _, token, ok := out.Find(tokenValue); ok {
		token.Invalidated = true
	}
	return out
}
