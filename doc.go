// Package users implements a small user-management service core: registration
// with email verification, password login with access/refresh JWTs, profile
// CRUD, substring search, and offset pagination over a relational users table.
//
// Persistence goes through Bun repositories, password hashing through bcrypt,
// and token issuance through golang-jwt. The HTTP surface lives in
// UserController (Fiber); bearer-token guarding lives in middleware/jwtware.
//
// Tokens:
//   - Access tokens are short-lived, carry {id, email, type}, and are trusted
//     by the guard without a database lookup.
//   - Refresh tokens are longer-lived and stored on the user record; a login
//     overwrites the previous value, a logout clears it.
//   - Verification tokens are single-use; redeeming one flips the account to
//     verified and clears the stored value in the same statement.
package users
