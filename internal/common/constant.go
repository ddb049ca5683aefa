package common

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "token"

// APIKeyBytes is the number of random bytes behind an issued API key.
// Hex encoding doubles it, so keys are 40 characters long.
const APIKeyBytes = 20
