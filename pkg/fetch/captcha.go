package fetch

import "listing-ingest/pkg/utils"

// captchaStatusCodes are HTTP statuses commonly returned by bot-protection
// layers (Cloudflare challenge pages, WAF blocks, rate limiting).
var captchaStatusCodes = map[int]bool{
	401: true,
	403: true,
	429: true,
	451: true,
	503: true,
	520: true,
	521: true,
	522: true,
	523: true,
	524: true,
	525: true,
	526: true,
}

// CaptchaSuspected reports whether the response looks like a bot challenge
// rather than listing content, either by status code or by challenge markers
// in the body.
func CaptchaSuspected(statusCode int, body []byte) bool {
	if captchaStatusCodes[statusCode] {
		return true
	}
	return utils.CaptchaWAFPattern.Match(body)
}
