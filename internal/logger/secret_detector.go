package logger

import (
	"regexp"
)

const (
	authorizationPattern = `(?i)(authorization["']?\s*[:=]\s*["']?)(bearer|appkey|app_key|userkey|user_key)?\s*([a-z0-9=/_\-\+\.]{8,})`
	keyTypePattern       = `(?i)\b(bearer|appkey)\s+([a-z0-9=/_\-\+\.]{8,})`
	apiTokenPattern      = `(?i)(api[_-]?token|access[_-]?token|refresh[_-]?token|token)([\'\"\s:=]+)([a-z0-9=/_\-\+\.]{8,})`
	passwordPattern      = `(?i)(password|pwd)([\'\"\s:=]+)([a-z0-9!\"#\$%&\\\'\(\)\*\+\,-\./:;<=>\?\@\[\]\^_\{\|\}~]{8,})`
	clientSecretPattern  = `(?i)(client[_-]?secret)([\'\"\s:= ]+)([a-z0-9!\"#\$%&\\\'\(\)\*\+\,-\./:;<=>\?\@\[\]\^_\{\|\}~]+)`
	awsKeyPattern        = `(?i)(aws_key_id|aws_secret_key|access_key_id|secret_access_key)(["'\s:=]+)([a-z0-9/+]{16,})`
	sasTokenPattern      = `(?i)(sig|signature|AWSAccessKeyId)=([a-z0-9%/+]{16,})`
	jwtTokenPattern      = `([a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,})` // pragma: allowlist secret
	urlUserInfoPattern   = `(https?://[^/:@\s]+):([^@/\s]{3,})@`
)

var (
	authorizationRegexp = regexp.MustCompile(authorizationPattern)
	keyTypeRegexp       = regexp.MustCompile(keyTypePattern)
	apiTokenRegexp      = regexp.MustCompile(apiTokenPattern)
	passwordRegexp      = regexp.MustCompile(passwordPattern)
	clientSecretRegexp  = regexp.MustCompile(clientSecretPattern)
	awsKeyRegexp        = regexp.MustCompile(awsKeyPattern)
	sasTokenRegexp      = regexp.MustCompile(sasTokenPattern)
	jwtTokenRegexp      = regexp.MustCompile(jwtTokenPattern)
	urlUserInfoRegexp   = regexp.MustCompile(urlUserInfoPattern)
)

type secretmasker string

func (s secretmasker) maskAuthorization() secretmasker {
	return secretmasker(authorizationRegexp.ReplaceAllString(s.String(), "${1}${2} ****"))
}

func (s secretmasker) maskKeyType() secretmasker {
	return secretmasker(keyTypeRegexp.ReplaceAllString(s.String(), "$1 ****"))
}

func (s secretmasker) maskAPIToken() secretmasker {
	return secretmasker(apiTokenRegexp.ReplaceAllString(s.String(), "$1${2}****"))
}

func (s secretmasker) maskPassword() secretmasker {
	return secretmasker(passwordRegexp.ReplaceAllString(s.String(), "$1${2}****"))
}

func (s secretmasker) maskClientSecret() secretmasker {
	return secretmasker(clientSecretRegexp.ReplaceAllString(s.String(), "$1${2}****"))
}

func (s secretmasker) maskAwsKey() secretmasker {
	return secretmasker(awsKeyRegexp.ReplaceAllString(s.String(), "$1${2}****"))
}

func (s secretmasker) maskSasToken() secretmasker {
	return secretmasker(sasTokenRegexp.ReplaceAllString(s.String(), "$1=****"))
}

func (s secretmasker) maskJwtToken() secretmasker {
	return secretmasker(jwtTokenRegexp.ReplaceAllString(s.String(), "****"))
}

func (s secretmasker) maskURLUserInfo() secretmasker {
	return secretmasker(urlUserInfoRegexp.ReplaceAllString(s.String(), "$1:****@"))
}

func (s secretmasker) String() string {
	return string(s)
}

// MaskSecrets masks API keys, bearer tokens, client secrets and storage credentials in text.
func MaskSecrets(text string) string {
	return secretmasker(text).
		maskAuthorization().
		maskKeyType().
		maskAPIToken().
		maskPassword().
		maskClientSecret().
		maskAwsKey().
		maskSasToken().
		maskJwtToken().
		maskURLUserInfo().
		String()
}
