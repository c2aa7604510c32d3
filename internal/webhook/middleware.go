package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"

	"github.com/gin-gonic/gin"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Mandrill-Signature"

// SignatureMiddleware verifies the provider signature over the configured
// webhook URL and the sorted POST parameters. An empty key disables the check.
func SignatureMiddleware(key, webhookURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form body"})
			return
		}

		signature := c.GetHeader(SignatureHeader)
		if signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
			return
		}

		expected := Sign(key, webhookURL, c.Request.PostForm)
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		c.Next()
	}
}

// Sign computes the base64 HMAC-SHA1 signature the provider sends: the
// webhook URL followed by every POST key and value in key order.
func Sign(key, webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(webhookURL))
	for _, k := range keys {
		for _, v := range params[k] {
			mac.Write([]byte(k))
			mac.Write([]byte(v))
		}
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
