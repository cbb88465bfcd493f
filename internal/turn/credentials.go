// Package turn mints short-lived TURN credentials. The username is a
// unix expiry timestamp and the credential is HMAC-SHA1 over it with a
// server-held secret, the scheme coturn's use-auth-secret expects.
package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"time"
)

// CredentialTTL is how long a minted pair stays valid.
const CredentialTTL = 24 * time.Hour

// Credentials returns a time-boxed username/credential pair valid for
// CredentialTTL from now.
func Credentials(secret string, now time.Time) (username, credential string) {
	expiry := now.Unix() + int64(CredentialTTL/time.Second)
	username = strconv.FormatInt(expiry, 10)
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	credential = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, credential
}
