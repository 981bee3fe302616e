package ioc

import (
	"regexp"
	"strings"
)

// Category is the semantic class of a string.
type Category string

const (
	Interesting Category = "interesting"
	IPv4        Category = "ipv4"
	IPv6        Category = "ipv6"
	Bitcoin     Category = "bitcoin"
	Ethereum    Category = "ethereum"
	Filename    Category = "file"
	Registry    Category = "registry"
	Domain      Category = "domain"
	URL         Category = "url"
	Email       Category = "email"
	MD5         Category = "md5"
	SHA1        Category = "sha1"
	SHA256      Category = "sha256"
)

// DefaultInterestingKeywords are matched as case insensitive substrings.
var DefaultInterestingKeywords = []string{".exe", "c://", ".dll", "exec", "sleep"}

// Rule assigns Category to every string its predicate accepts.
type Rule struct {
	Category Category
	Hint     string
	Example  string
	Match    func(value string) bool
}

// RegexpRule builds a Rule from a regular expression.
func RegexpRule(category Category, hint, example, pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return Rule{
		Category: category,
		Hint:     hint,
		Example:  example,
		Match:    re.MatchString,
	}
}

// KeywordRule builds a Rule matching any of the keywords as a case
// insensitive substring.
func KeywordRule(category Category, hint, example string, keywords []string) Rule {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return Rule{
		Category: category,
		Hint:     hint,
		Example:  example,
		Match: func(value string) bool {
			value = strings.ToLower(value)
			for _, k := range lowered {
				if strings.Contains(value, k) {
					return true
				}
			}
			return false
		},
	}
}

const (
	octet = `(25[0-5]|(2[0-4]|1[0-9]|[1-9]|)[0-9])`

	ipv4Pattern = `^` + octet + `(\.` + octet + `){3}$`

	ipv6Pattern = `^(([0-9a-fA-F]{1,4}:){7,7}[0-9a-fA-F]{1,4}|([0-9a-fA-F]{1,4}:){1,7}:|([0-9a-fA-F]{1,4}:){1,6}:[0-9a-fA-F]{1,4}|([0-9a-fA-F]{1,4}:){1,5}(:[0-9a-fA-F]{1,4}){1,2}|([0-9a-fA-F]{1,4}:){1,4}(:[0-9a-fA-F]{1,4}){1,3}|([0-9a-fA-F]{1,4}:){1,3}(:[0-9a-fA-F]{1,4}){1,4}|([0-9a-fA-F]{1,4}:){1,2}(:[0-9a-fA-F]{1,4}){1,5}|[0-9a-fA-F]{1,4}:((:[0-9a-fA-F]{1,4}){1,6})|:((:[0-9a-fA-F]{1,4}){1,7}|:)|fe80:(:[0-9a-fA-F]{0,4}){0,4}%[0-9a-zA-Z]{1,}|::(ffff(:0{1,4}){0,1}:){0,1}((25[0-5]|(2[0-4]|1{0,1}[0-9]){0,1}[0-9])\.){3,3}(25[0-5]|(2[0-4]|1{0,1}[0-9]){0,1}[0-9])|([0-9a-fA-F]{1,4}:){1,4}:((25[0-5]|(2[0-4]|1{0,1}[0-9]){0,1}[0-9])\.){3,3}(25[0-5]|(2[0-4]|1{0,1}[0-9]){0,1}[0-9]))$`

	bitcoinPattern  = `^(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,39}$`
	ethereumPattern = `^(0x)?[a-fA-F0-9]{40}$`
	filePattern     = `^\S+\.(dll|exe|pdf|doc|docx|html|htm|zip|rar|xls|odt|msi|bat|ps1|ppt)$`
	registryPattern = `^HKEY_\S+$`

	// Labels must neither start nor end with a hyphen.
	domainPattern = `^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+(com|eu|net|org|ru|uk|de|in|edu)$`

	urlPattern    = `^(http|ftp|https)://([\w_-]+(?:(?:\.[\w_-]+)+))([\w.,@?^=%&:/~+#-]*[\w@?^=%&/~+#-])?`
	emailPattern  = `^.+@.+\..+$`
	md5Pattern    = `^[a-fA-F0-9]{32}$`
	sha1Pattern   = `^[A-Fa-f0-9]{40}$`
	sha256Pattern = `^[A-Fa-f0-9]{64}$`
)

var domainRegexp = regexp.MustCompile(domainPattern)

func isDomain(value string) bool {
	return len(value) >= 4 && len(value) <= 253 && domainRegexp.MatchString(value)
}

// DefaultRules returns the built-in rule table using the given interesting
// keywords, or DefaultInterestingKeywords if none are given. The order of
// the table is significant since categories overlap.
func DefaultRules(interestingKeywords ...string) []Rule {
	if len(interestingKeywords) == 0 {
		interestingKeywords = DefaultInterestingKeywords
	}

	return []Rule{
		KeywordRule(Interesting, "Interesting?", "exec", interestingKeywords),
		RegexpRule(IPv4, "IPv4?", "1.1.1.1", ipv4Pattern),
		RegexpRule(IPv6, "IPv6?", "2001:4860:4860::8888", ipv6Pattern),
		RegexpRule(Bitcoin, "Bitcoin?", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", bitcoinPattern),
		RegexpRule(Ethereum, "Ethereum?", "0x89205A3A3b2A69De6Dbf7f01ED13B2108B2c43e7", ethereumPattern),
		RegexpRule(Filename, "File?", "invoice.pdf", filePattern),
		RegexpRule(Registry, "Registry Key?", `HKEY_LOCAL_MACHINE\SYSTEM\CurrentControlSet\Services\RasAuto\Parameters\ServiceDLL`, registryPattern),
		{
			Category: Domain,
			Hint:     "Domain?",
			Example:  "google.de",
			Match:    isDomain,
		},
		RegexpRule(URL, "URL?", "https://www.example.com", urlPattern),
		RegexpRule(Email, "Email?", "test@test.com", emailPattern),
		RegexpRule(MD5, "MD5 Hash?", "0f53217fc7c8e7f89e8a8558e64a7083", md5Pattern),
		RegexpRule(SHA1, "SHA1 Hash?", "bf6db7112b56812702e99d48a7b1dab62d09b3f6", sha1Pattern),
		RegexpRule(SHA256, "SHA256 Hash?", "85757d9ef5868bb53472a6be8d81d1e3c398546b69b107141ad336053c40cb54", sha256Pattern),
	}
}
