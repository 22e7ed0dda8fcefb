// Package auth computes SharedKeyLite request signatures for the table
// endpoint. Signing is pure and deterministic; because the signature binds
// to the timestamp it accompanies, callers must recompute it for every
// request, including retries.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/tablesql/tablesql/types"
)

// Scheme is the authorization scheme name used in the header value.
const Scheme = "SharedKeyLite"

// StringToSign builds the canonical SharedKeyLite input:
// the request date followed by the canonicalized resource path.
func StringToSign(date, resourcePath string) string {
	return date + "\n" + resourcePath
}

// Authorization computes the Authorization header value for a request.
// accountKey is the base64-encoded account key; date is the value of the
// x-ms-date header; resourcePath is the canonical resource, e.g.
// "/account/table()".
func Authorization(account, accountKey, date, resourcePath string) (string, error) {
	signature, err := sign(accountKey, StringToSign(date, resourcePath))
	if err != nil {
		return "", err
	}

	return Scheme + " " + account + ":" + signature, nil
}

// Verify recomputes the signature for the given request attributes and
// compares it against a presented Authorization header value. It returns
// false for malformed headers, unknown schemes, or signature mismatches.
func Verify(header, account, accountKey, date, resourcePath string) bool {
	expected, err := Authorization(account, accountKey, date, resourcePath)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(header), []byte(expected)) == 1
}

func sign(accountKey, stringToSign string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(accountKey)
	if err != nil {
		return "", types.NewError(types.ErrCodeInvalidKey,
			"account key is not valid base64", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
