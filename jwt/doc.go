// Package jwt mints and verifies HMAC-signed bearer credentials carrying a
// subject, an absolute expiry and a unique token id (jti) used as the
// revocation key.
package jwt
